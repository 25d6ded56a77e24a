package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/crewdesk/internal/gateway"
	"github.com/user/crewdesk/internal/state"
	"github.com/user/crewdesk/internal/studio"
	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/pkg/llm"
)

func init() {
	rootCmd.AddCommand(mediaCmd)
	mediaCmd.AddCommand(mediaImageCmd, mediaVideoCmd, mediaListCmd, mediaPromoteCmd)

	imf := mediaImageCmd.Flags()
	imf.String("model", "", "image model (defaults to media.image_model)")
	imf.String("aspect", "1:1", "aspect ratio: "+strings.Join(types.AspectRatios, ", "))
	imf.String("ref", "", "reference image file")
	for _, c := range []*cobra.Command{mediaImageCmd, mediaVideoCmd} {
		c.Flags().StringP("output", "o", "", "copy the result to this file")
		c.Flags().Bool("promote", false, "create a backlog task for the result")
	}
	mediaVideoCmd.Flags().String("image", "", "starting frame image file")
	mediaPromoteCmd.Flags().String("prompt", "", "prompt the media was generated from")
}

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Generate images and videos",
}

var mediaImageCmd = &cobra.Command{
	Use:   "image <prompt>",
	Short: "Generate an image",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		model, _ := f.GetString("model")
		if model == "" {
			model = a.cfg.Media.ImageModel
		}
		aspect, _ := f.GetString("aspect")
		if !types.ValidAspectRatio(aspect) {
			return fmt.Errorf("unsupported aspect ratio %q", aspect)
		}
		req := gateway.ImageRequest{
			Prompt:      strings.Join(args, " "),
			Model:       types.ImageModel(model),
			AspectRatio: aspect,
		}
		if ref, _ := f.GetString("ref"); ref != "" {
			if req.ReferenceImage, err = readImageFile(ref); err != nil {
				return err
			}
		}
		return runMediaJob(cmd, a, studio.NewImageJob(req))
	},
}

var mediaVideoCmd = &cobra.Command{
	Use:   "video <prompt>",
	Short: "Generate a video (this can take several minutes)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		req := gateway.VideoRequest{Prompt: strings.Join(args, " ")}
		if img, _ := cmd.Flags().GetString("image"); img != "" {
			if req.SourceImage, err = readImageFile(img); err != nil {
				return err
			}
		}
		return runMediaJob(cmd, a, studio.NewVideoJob(req))
	},
}

// runMediaJob runs one job through a local studio queue, keeps the payload
// in the blob store and reports where it landed.
func runMediaJob(cmd *cobra.Command, a *app, job *studio.Job) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a.studio.Start(ctx)
	defer a.studio.Stop()
	if _, err := a.studio.Submit(job); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s job %s queued...\n", job.Kind, shortID(string(job.ID)))

	media, err := job.Wait(ctx)
	if err != nil {
		return err
	}

	locator, err := persistMedia(ctx, a.blobs, media.URL)
	if err != nil {
		return err
	}
	path, err := a.blobs.FilePath(locator)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s as %s (%s)\n", media.Type, locator, path)

	if dst, _ := cmd.Flags().GetString("output"); dst != "" {
		data, _, err := a.blobs.Get(ctx, locator)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
		fmt.Fprintf(out, "Copied to %s\n", dst)
	}

	if promote, _ := cmd.Flags().GetBool("promote"); promote {
		media.URL = locator
		task, err := a.board.PromoteMedia(media)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Task %s created: %s\n", shortID(string(task.ID)), task.Title)
	}
	return nil
}

// persistMedia moves an inline data URI into the blob store. Blob
// locators are returned unchanged.
func persistMedia(ctx context.Context, blobs *state.BlobStore, url string) (string, error) {
	if strings.HasPrefix(url, state.BlobScheme) {
		return url, nil
	}
	img, err := gateway.DecodeImage(url)
	if err != nil {
		return "", err
	}
	return blobs.Put(ctx, img.Data, img.MIMEType)
}

func readImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mt, "image/") {
		return "", fmt.Errorf("%s is not an image", path)
	}
	return gateway.EncodeDataURI(&llm.InlineData{Data: data, MIMEType: mt}), nil
}

var mediaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the daemon's gallery",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newDaemonClient(loadConfig())
		if err != nil {
			return err
		}
		var gallery []types.GeneratedMedia
		if err := client.get(cmd.Context(), "/api/media", &gallery); err != nil {
			return err
		}
		if len(gallery) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "The gallery is empty.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tMODEL\tCREATED\tPROMPT")
		for _, m := range gallery {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Type, m.Model, m.Timestamp.Format("2006-01-02 15:04"), m.Prompt)
		}
		return w.Flush()
	},
}

var mediaPromoteCmd = &cobra.Command{
	Use:   "promote <locator>",
	Short: "Create a backlog task for a stored media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := a.blobs.FilePath(args[0]); err != nil {
			return err
		}
		prompt, _ := cmd.Flags().GetString("prompt")
		if prompt == "" {
			prompt = args[0]
		}
		stop := echoNotifications(a.store, cmd.OutOrStdout())
		defer stop()
		task, err := a.board.PromoteMedia(types.GeneratedMedia{URL: args[0], Prompt: prompt})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s created: %s\n", shortID(string(task.ID)), task.Title)
		return nil
	},
}
