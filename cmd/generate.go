package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-photo-studio/pkg/credential"
	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/imgutil"
	"github.com/shouni/gemini-photo-studio/pkg/session"
)

var (
	genInput  string
	genOutput string
	genMode   string
	genStyle  string
	genPrompt string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "画像を1枚生成してファイルに保存します",
	Long: `元画像と指示から画像を1枚生成し、PNG ファイルとして保存します。
--output を省略した場合は <suitup-ai|comic-strip>-<ミリ秒>.png に保存します。

Examples:
  photostudio generate --input me.jpg
  photostudio generate --input me.jpg --mode custom --prompt "Add a retro filter"
  photostudio generate --app comic --input cat.png --style manga --prompt "cat plans world domination"`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&genInput, "input", "i", "", "Source image file (required)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output PNG file")
	generateCmd.Flags().StringVar(&genMode, "mode", "auto", "Suit edit mode: auto, custom")
	generateCmd.Flags().StringVar(&genStyle, "style", "", "Comic style id (see: photostudio styles)")
	generateCmd.Flags().StringVarP(&genPrompt, "prompt", "p", "", "Custom instruction (suit custom mode) or story (comic)")
	_ = generateCmd.MarkFlagRequired("input")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := newStudio(ctx, cfg, credential.TerminalSelector{In: os.Stdin, Prompt: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	if st.gate != nil && !st.gate.HasCredential() {
		if _, err := st.gate.Select(ctx); err != nil {
			return fmt.Errorf("APIキーが選択されませんでした: %w", err)
		}
	}

	data, err := os.ReadFile(genInput)
	if err != nil {
		return fmt.Errorf("元画像の読み込みに失敗しました: %w", err)
	}
	src := domain.NewSourceImage(data, imgutil.DetectImageMIME(data, mime.TypeByExtension(filepath.Ext(genInput))), filepath.Base(genInput))
	src = imgutil.RecompressSource(src, cfg.UploadJPEGQuality)

	s, err := st.newSession("cli", nil)
	if err != nil {
		return err
	}
	if err := s.Select(src); err != nil {
		return fmt.Errorf("%s: %w", genInput, err)
	}

	res, err := s.Generate(ctx, session.GenerateOptions{
		Mode:   domain.NormalizeEditMode(genMode),
		Style:  genStyle,
		Prompt: genPrompt,
	})
	if err != nil {
		var failure *session.Failure
		if errors.As(err, &failure) {
			slog.Debug("生成に失敗しました", "kind", failure.Kind, "error", failure.Err)
			return errors.New(failure.Message)
		}
		return err
	}

	out := genOutput
	if out == "" {
		out = s.DownloadName()
	}
	if err := os.WriteFile(out, res.Data, 0644); err != nil {
		return fmt.Errorf("画像の保存に失敗しました: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", out)
	return nil
}
