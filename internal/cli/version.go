package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, set at build time:
//
//	go build -ldflags "-X github.com/KilimcininKorOglu/obacore/internal/cli.version=1.0.0"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// VersionInfo is the JSON form of the version command output.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version:   version,
				Commit:    commit,
				BuildDate: buildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			return newFormatter(rootOpts, cmd).Success(info, func(w io.Writer) {
				if short {
					fmt.Fprintln(w, info.Version)
					return
				}
				fmt.Fprintf(w, "obacore version %s\n", info.Version)
				fmt.Fprintf(w, "  Commit:     %s\n", info.Commit)
				fmt.Fprintf(w, "  Built:      %s\n", info.BuildDate)
				fmt.Fprintf(w, "  Go version: %s\n", info.GoVersion)
				fmt.Fprintf(w, "  OS/Arch:    %s\n", info.Platform)
			})
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")

	return cmd
}
