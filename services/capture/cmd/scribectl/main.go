package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scribed/services/capture"
	"scribed/services/export"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scribectl",
		Short:         "Utility for scribed recording hand-off and exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRecordCommand())
	cmd.AddCommand(newExportCommand())
	return cmd
}

func newRecordCommand() *cobra.Command {
	var (
		scanURL     string
		devicePath  string
		contentType string
		minBytes    int64
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture audio and upload it to a scanned hand-off session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			target, err := capture.ParseTarget(scanURL)
			if err != nil {
				return err
			}

			client, err := capture.NewClient(target.BaseURL)
			if err != nil {
				return err
			}

			device := capture.FileDevice{Path: devicePath, ContentType: contentType}
			rec, err := capture.Capture(ctx, device, minBytes)
			if err != nil {
				switch {
				case errors.Is(err, capture.ErrPermissionDenied):
					fmt.Fprintln(os.Stderr, "microphone access was denied; grant permission and retry")
				case errors.Is(err, capture.ErrDeviceUnavailable):
					fmt.Fprintln(os.Stderr, "no recording device found on this host")
				}
				if reportErr := client.ReportError(ctx, target.SessionID); reportErr != nil {
					fmt.Fprintf(os.Stderr, "report capture failure: %v\n", reportErr)
				}
				return err
			}

			ref, err := client.Upload(ctx, target.SessionID, rec)
			if err != nil {
				if reportErr := client.ReportError(ctx, target.SessionID); reportErr != nil {
					fmt.Fprintf(os.Stderr, "report upload failure: %v\n", reportErr)
				}
				return err
			}

			fmt.Fprintf(os.Stdout, "uploaded %d bytes to session %s as %s\n", ref.Size, target.SessionID, ref.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&scanURL, "url", "", "Scanned hand-off URL from the desktop QR code")
	cmd.Flags().StringVar(&devicePath, "device", "", "Capture device node or audio file to read")
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type of the captured audio (default audio/wav)")
	cmd.Flags().Int64Var(&minBytes, "min-bytes", capture.DefaultMinBytes, "Reject captures smaller than this many bytes")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Signed export bundle operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newExportBuildCommand())
	cmd.AddCommand(newExportVerifyCommand())
	return cmd
}

func newExportBuildCommand() *cobra.Command {
	var (
		sourceDir string
		output    string
		sessionID string
		ownerID   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Create a signed export bundle from a session's documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			signer, err := export.NewSignerFromEnv()
			if err != nil {
				return err
			}
			_, err = export.Build(ctx, export.BuildConfig{
				SourceDir: sourceDir,
				Output:    output,
				SessionID: sessionID,
				OwnerID:   ownerID,
				Signer:    signer,
				Stdout:    os.Stdout,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&sourceDir, "source-dir", "", "Directory containing the session's documents and recording")
	cmd.Flags().StringVar(&output, "output", "", "Destination bundle file (tar.zst)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id recorded in the manifest")
	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner id recorded in the manifest")
	_ = cmd.MarkFlagRequired("source-dir")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newExportVerifyCommand() *cobra.Command {
	var bundleFile string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a bundle's manifest signature and entry digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			signer, err := export.NewSignerFromEnv()
			if err != nil {
				return err
			}
			manifest, err := export.Verify(ctx, bundleFile, signer)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "bundle ok: session %s, %d entries, signed by %s\n",
				manifest.SessionID, len(manifest.Entries), manifest.Signer)
			return nil
		},
	}

	cmd.Flags().StringVar(&bundleFile, "file", "", "Path to the bundle tar.zst")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
