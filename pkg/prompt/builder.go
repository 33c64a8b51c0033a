package prompt

import (
	"fmt"
	"strings"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
)

const (
	// SuitTemplate はスーツ着せ替え (auto モード) の固定指示です。
	SuitTemplate = "Identify the person in this image. Change their outfit to a stylish, well-fitted professional business suit. Choose a modern suit style that fits the person's pose perfectly. Keep the background, face, and lighting exactly consistent with the original image."

	// EnhanceFallback は custom モードで指示が空のときに使う汎用指示です。
	EnhanceFallback = "Enhance the quality of this image and make it look professional."

	// DefaultStory は漫画のストーリー指示が空のときに使う筋書きです。
	DefaultStory = "Invent a short, lighthearted everyday adventure with a funny twist in the final panel."
)

const comicTemplate = `Create a 4-panel comic strip (2x2 grid layout) based on the uploaded image.

VISUAL STYLE: %s

STORY INSTRUCTIONS: %s

REQUIREMENTS:
1. The character/subject from the source image should be the main protagonist.
2. The output MUST be a single image containing exactly 4 panels arranged in a grid.
3. Include speech bubbles or captions with legible text if appropriate for the story.
4. Make it visually engaging and consistent in style across all panels.`

// SuitPrompt はスーツアプリの最終指示を組み立てます。
// auto モードでは hint を無視し、custom モードでは空白を除いた hint をそのまま使います。
func SuitPrompt(mode domain.EditMode, hint string) string {
	if mode != domain.EditModeCustom {
		return SuitTemplate
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	return EnhanceFallback
}

// ComicPrompt は画風ラベルとストーリー指示を固定の構成要件に埋め込みます。
func ComicPrompt(style Style, hint string) string {
	story := strings.TrimSpace(hint)
	if story == "" {
		story = DefaultStory
	}
	return fmt.Sprintf(comicTemplate, style.Label, story)
}
