package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/raine/fittingap/config"
	"github.com/raine/fittingap/internal/camera"
)

// Options carries platform wiring that the CLI does not import itself.
type Options struct {
	// CameraDevice builds the hardware camera for a CAMERA_DEVICE value.
	CameraDevice func(id string) camera.Device
}

func NewRootCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fittingap",
		Short: "Fashion inspiration from a photo or a description",
		Long: `Fittingap sends a picture of an outfit, a description, or both to a
recommendation backend and shows the products it suggests.

Pick a file, drop one onto the terminal, or take a still with the camera.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Local .env first so it wins over the saved config file
			_ = godotenv.Load()
			config.LoadEnvFile()
		},
	}

	cmd.AddCommand(newRecommendCmd(opts))
	cmd.AddCommand(newInteractiveCmd(opts))
	cmd.AddCommand(newBotCmd())
	cmd.AddCommand(newSetupCmd())

	return cmd
}
