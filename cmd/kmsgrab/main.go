//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kmsgrab/kmsgrab/internal/capture"
	"github.com/kmsgrab/kmsgrab/internal/config"
	"github.com/kmsgrab/kmsgrab/internal/drm"
	"github.com/kmsgrab/kmsgrab/internal/format"
	"github.com/kmsgrab/kmsgrab/internal/logging"
	"github.com/kmsgrab/kmsgrab/internal/ppm"
	"github.com/kmsgrab/kmsgrab/internal/privilege"
)

var (
	version = "0.1.0"

	cfgFile      string
	flagDevice   string
	flagOutput   string
	flagFB       uint32
	flagExposure float64
	flagToneMap  int
	flagList     bool
)

var rootCmd = &cobra.Command{
	Use:   "kmsgrab",
	Short: "KMS/DRM framebuffer screenshot tool",
	Long: `kmsgrab captures the framebuffer currently scanned out by the
display hardware, straight from the kernel's KMS interface, and writes
it as a binary PPM image. Tiled GPU framebuffers are linearized on the
GPU; HDR (ABGR16161616) content is tone-mapped.

Tone mapping modes (--tonemap):
  0  Reinhard
  1  ACES Fast
  2  ACES Hill (default)
  3  ACES Day
  4  ACES Full RRT
  5  Hable
  6  Reinhard Extended
  7  Uchimura`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kmsgrab v%s\n", version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is /etc/kmsgrab/kmsgrab.yaml)")
	rootCmd.Flags().StringVar(&flagDevice, "device", "", "DRM device node (default /dev/dri/card1)")
	rootCmd.Flags().StringVar(&flagOutput, "output", "", "output PPM file (default screenshot.ppm)")
	rootCmd.Flags().Uint32Var(&flagFB, "fb", 0, "framebuffer ID to capture (0 = auto-detect largest)")
	rootCmd.Flags().Float64Var(&flagExposure, "exposure", 1.0, "HDR exposure multiplier (> 0)")
	rootCmd.Flags().IntVar(&flagToneMap, "tonemap", 2, "HDR tone mapping mode (0-7)")
	rootCmd.Flags().BoolVar(&flagList, "list", false, "list planes and framebuffers, then exit")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags override file and environment.
	if cmd.Flags().Changed("device") {
		cfg.Device = flagDevice
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = flagOutput
	}
	if cmd.Flags().Changed("exposure") {
		cfg.Exposure = flagExposure
	}
	if cmd.Flags().Changed("tonemap") {
		cfg.ToneMap = flagToneMap
	}

	result := cfg.ValidateTiered()
	for _, warn := range result.Warnings {
		fmt.Fprintln(os.Stderr, "Warning:", warn)
	}
	if result.HasFatals() {
		return result.Fatals[0]
	}

	if err := setupLogging(cfg); err != nil {
		return err
	}
	log := logging.L("main")

	if err := privilege.Require(); err != nil {
		return err
	}

	dev, err := drm.Open(cfg.Device)
	if err != nil {
		if cards, lerr := drm.ListDevices(); lerr == nil && len(cards) > 0 {
			return fmt.Errorf("%w (available devices: %s)", err, strings.Join(cards, ", "))
		}
		return err
	}
	defer dev.Close()

	if err := dev.SetClientCap(drm.ClientCapUniversalPlanes, 1); err != nil {
		log.Warn("universal planes unavailable", "error", err)
	}

	if flagList {
		return listFramebuffers(dev)
	}

	orch, err := capture.New(dev, cfg.Params())
	if err != nil {
		return err
	}
	res, err := orch.Run(flagFB)
	if err != nil {
		return err
	}

	img := &ppm.Image{Width: res.Width, Height: res.Height, Pix: res.Pix}
	if err := ppm.WriteFile(cfg.Output, img); err != nil {
		return err
	}

	if res.Degraded {
		fmt.Fprintln(os.Stderr, "Warning:", res.Note)
	}
	fmt.Printf("Wrote %s (%dx%d)\n", cfg.Output, res.Width, res.Height)
	return nil
}

func setupLogging(cfg *config.Config) error {
	var out io.Writer
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return err
		}
		out = logging.TeeWriter(os.Stderr, rw)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	return nil
}

// listFramebuffers prints every plane with its bound framebuffer, in
// plane enumeration order.
func listFramebuffers(dev *drm.Device) error {
	planes, err := dev.Planes()
	if err != nil {
		return err
	}
	fmt.Printf("%d planes on %s\n", len(planes), dev.Path())
	for _, p := range planes {
		if p.FBID == 0 {
			fmt.Printf("plane %d: (no framebuffer)\n", p.ID)
			continue
		}
		fb, err := dev.Framebuffer(p.FBID)
		if err != nil {
			fmt.Printf("plane %d: FB %d (unreadable: %v)\n", p.ID, p.FBID, err)
			continue
		}
		fmt.Printf("plane %d: FB %d (%dx%d, %s)\n",
			p.ID, fb.ID, fb.Width, fb.Height, format.Name(fb.PixelFormat))
		dev.ReleaseFramebuffer(fb)
	}
	return nil
}
