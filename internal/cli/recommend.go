package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/raine/fittingap/config"
	"github.com/raine/fittingap/internal/results"
)

type recommendFlags struct {
	image        string
	drop         string
	camera       bool
	cameraDevice string
	description  string
	expand       int
	output       string
}

func newRecommendCmd(opts Options) *cobra.Command {
	var f recommendFlags

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Get product recommendations in one shot",
		Long: `Send an image, a description, or both to the backend and print the
recommended products.

The image comes from --image, --drop or --camera. At least one of an image
or a non-blank --description is required.`,
		Example: `  fittingap recommend --image outfit.jpg
  fittingap recommend --description "linen summer dress" --output json
  fittingap recommend --camera --expand 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(cmd, opts, f)
		},
	}

	cmd.Flags().StringVarP(&f.image, "image", "i", "", "image file to send")
	cmd.Flags().StringVar(&f.drop, "drop", "", "image file to send as a dropped file")
	cmd.Flags().BoolVar(&f.camera, "camera", false, "take a still with the camera")
	cmd.Flags().StringVar(&f.cameraDevice, "camera-device", "", "camera index, URL or picture file (default CAMERA_DEVICE)")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "text describing what you are looking for")
	cmd.Flags().IntVar(&f.expand, "expand", 0, "expand the n-th product (1-based)")
	cmd.Flags().StringVarP(&f.output, "output", "o", results.FormatText, "output format: text, json or yaml")
	cmd.MarkFlagsMutuallyExclusive("image", "drop", "camera")

	return cmd
}

func runRecommend(cmd *cobra.Command, opts Options, f recommendFlags) error {
	switch f.output {
	case results.FormatText, results.FormatJSON, results.FormatYAML:
	default:
		return fmt.Errorf("unknown output format %q", f.output)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	deviceID := cfg.CameraDevice
	if f.cameraDevice != "" {
		deviceID = f.cameraDevice
	}

	a, err := newApp(cfg, resolveCameraDevice(deviceID, opts.CameraDevice))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	switch {
	case f.image != "":
		err = a.selectFile(f.image)
	case f.drop != "":
		err = a.dropFile(f.drop)
	case f.camera:
		if err = a.openCamera(ctx); err == nil {
			err = a.capture(ctx)
		}
		if stopErr := a.session.StopCamera(); stopErr != nil {
			log.Warn().Err(stopErr).Msg("failed to stop camera")
		}
	}
	if err != nil {
		return err
	}

	if err := a.session.SetDescription(f.description); err != nil {
		return err
	}

	snap, err := a.submit(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("count", snap.Results.Len()).Msg("received recommendations")

	if f.expand != 0 {
		if f.expand < 1 || f.expand > snap.Results.Len() {
			return fmt.Errorf("--expand %d is out of range, got %d products", f.expand, snap.Results.Len())
		}
		if err := a.session.Toggle(f.expand - 1); err != nil {
			return err
		}
		snap = a.session.Snapshot()
	}

	if snap.Results.Len() == 0 && f.output == results.FormatText {
		fmt.Fprintln(cmd.OutOrStdout(), msgNoProducts)
		return nil
	}
	return results.Encode(cmd.OutOrStdout(), snap.Results, a.client.BaseURL(), f.output)
}

const msgNoProducts = "No matching products found."
