package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/raine/fittingap/config"
	"github.com/raine/fittingap/internal/media"
	"github.com/raine/fittingap/internal/results"
	"github.com/raine/fittingap/internal/session"
	"github.com/raine/fittingap/internal/submission"
)

const (
	actionPick         = "pick"
	actionDrop         = "drop"
	actionCameraOpen   = "camera-open"
	actionCameraTake   = "camera-take"
	actionCameraCancel = "camera-cancel"
	actionClearImage   = "clear"
	actionDescribe     = "describe"
	actionSubmit       = "submit"
	actionExpand       = "expand"
	actionQuit         = "quit"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1)
)

func newInteractiveCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"ui"},
		Short:   "Pick an image and browse recommendations in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isInteractiveTerminal() {
				return errors.New("interactive mode needs a terminal, use `fittingap recommend` instead")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, resolveCameraDevice(cfg.CameraDevice, opts.CameraDevice))
			if err != nil {
				return err
			}
			defer a.Close()
			return runInteractive(cmd.Context(), cmd.OutOrStdout(), a)
		},
	}
}

func runInteractive(ctx context.Context, out io.Writer, a *app) error {
	// Errors from the last action that are not part of the session state
	var notice string

	for {
		snap := a.session.Snapshot()
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderStatus(snap, a.client.BaseURL()))
		if notice != "" {
			fmt.Fprintln(out, errorStyle.Render(notice))
			notice = ""
		}

		var action string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("What next?").
					Options(menuOptions(snap)...).
					Value(&action),
			),
		).WithTheme(huh.ThemeBase16())

		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}

		var err error
		switch action {
		case actionPick:
			err = pickFile(ctx, a)
		case actionDrop:
			err = promptDrop(ctx, a)
		case actionCameraOpen:
			fmt.Fprintln(out, labelStyle.Render("Waiting for camera..."))
			err = a.openCamera(ctx)
		case actionCameraTake:
			err = a.capture(ctx)
		case actionCameraCancel:
			err = a.session.StopCamera()
		case actionClearImage:
			err = a.session.Clear()
		case actionDescribe:
			err = promptDescription(ctx, a, snap.Submission.Description)
		case actionSubmit:
			fmt.Fprintln(out, busyStyle.Render(submitLabel(submission.State{Phase: submission.PhaseSubmitting})))
			_, err = a.submit(ctx)
		case actionExpand:
			err = promptExpand(ctx, a, snap.Results)
		case actionQuit:
			return nil
		}

		if ctx.Err() != nil {
			return nil
		}
		// Camera and submission failures are already part of the snapshot
		if err != nil && !isShownInStatus(action, err) {
			notice = err.Error()
		}
	}
}

// menuOptions lists the actions available in the given state.
func menuOptions(snap session.Snapshot) []huh.Option[string] {
	var opts []huh.Option[string]
	if snap.CameraActive {
		opts = append(opts,
			huh.NewOption("Take photo", actionCameraTake),
			huh.NewOption("Cancel camera", actionCameraCancel),
		)
	} else {
		opts = append(opts,
			huh.NewOption("Choose an image file", actionPick),
			huh.NewOption("Drop an image file", actionDrop),
			huh.NewOption("Use camera", actionCameraOpen),
		)
		if snap.Image.HasPayload() {
			opts = append(opts, huh.NewOption("Remove image", actionClearImage))
		}
	}
	opts = append(opts,
		huh.NewOption("Describe what you are looking for", actionDescribe),
		huh.NewOption(submitLabel(snap.Submission), actionSubmit),
	)
	if snap.Results.Len() > 0 {
		opts = append(opts, huh.NewOption("Show or hide product details", actionExpand))
	}
	return append(opts, huh.NewOption("Quit", actionQuit))
}

// submitLabel is the text of the submit control.
func submitLabel(state submission.State) string {
	if state.Busy() {
		return "Uploading..."
	}
	return "Get recommendations"
}

// renderStatus draws the current image, description and results.
func renderStatus(snap session.Snapshot, baseURL string) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Fittingap") + "\n\n")

	sb.WriteString(labelStyle.Render("Image: ") + snap.Image.Label() + "\n")
	if preview := snap.Image.Preview(); !preview.IsPlaceholder() && preview.Path != "" {
		sb.WriteString(labelStyle.Render("Preview: ") + preview.Path + "\n")
	}
	switch {
	case snap.CameraActive:
		sb.WriteString(labelStyle.Render("Camera: ") + liveStyle.Render("live") + "\n")
	case snap.CameraPending:
		sb.WriteString(labelStyle.Render("Camera: ") + "starting...\n")
	}
	if snap.CameraError != "" {
		sb.WriteString(errorStyle.Render(snap.CameraError) + "\n")
	}

	desc := snap.Submission.Description
	if strings.TrimSpace(desc) == "" {
		desc = labelStyle.Render("(none)")
	}
	sb.WriteString(labelStyle.Render("Description: ") + desc)

	status := panelStyle.Render(sb.String())

	if msg := snap.Submission.ErrorMessage; msg != "" {
		status += "\n" + errorStyle.Render(msg)
	}
	if snap.Submission.Phase == submission.PhaseSucceeded && snap.Results.Len() == 0 {
		status += "\n" + msgNoProducts
	}
	if rendered := results.Render(snap.Results, baseURL); rendered != "" {
		status += "\n" + rendered
	}
	return status
}

func isShownInStatus(action string, err error) bool {
	switch action {
	case actionCameraOpen:
		return err.Error() == session.CameraErrorMessage
	case actionSubmit:
		return !errors.Is(err, submission.ErrNothingToSubmit) && !errors.Is(err, submission.ErrBusy)
	}
	return false
}

func pickFile(ctx context.Context, a *app) error {
	var path string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewFilePicker().
				Title("Choose an image").
				Description("Arrow keys to move, enter to open or select, esc to go back.").
				AllowedTypes(media.ImageExtensions).
				FileAllowed(true).
				DirAllowed(false).
				Picking(true).
				Height(12).
				Value(&path),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	// A cancelled dialog leaves the current image as it was
	if path == "" {
		return nil
	}
	log.Debug().Str("path", path).Msg("file picked")
	return a.selectFile(path)
}

func promptDrop(ctx context.Context, a *app) error {
	var path string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Drop an image here").
				Description("Drag a file onto this window, then press enter.").
				Value(&path),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(path) == "" {
		return nil
	}
	return a.dropFile(path)
}

func promptDescription(ctx context.Context, a *app, current string) error {
	description := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Description").
				Placeholder("Describe the style you're looking for...").
				Value(&description),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	return a.session.SetDescription(description)
}

func promptExpand(ctx context.Context, a *app, view results.View) error {
	opts := make([]huh.Option[int], 0, view.Len())
	for i, it := range view.Items() {
		marker := "▸"
		if view.IsExpanded(i) {
			marker = "▾"
		}
		opts = append(opts, huh.NewOption(marker+" "+strconv.Itoa(i+1)+". "+it.Name, i))
	}

	var index int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Product").
				Options(opts...).
				Value(&index),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	return a.session.Toggle(index)
}
