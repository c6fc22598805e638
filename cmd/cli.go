// SPDX-License-Identifier: MIT
// Package cmd parses the command line into run options. The subcommand
// selects the audio source (mic by default); persistent flags override
// the loaded configuration file.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"soundviz/internal/config"
	"soundviz/internal/engine"
	"soundviz/pkg/build"
)

// Options is the resolved result of argument parsing: the effective
// configuration plus what to run.
type Options struct {
	Config  *config.Config
	Mode    engine.Mode
	Param   string // WAV path or stream URL, depending on Mode
	Command string // "run" or "list"
	Plain   bool   // plain text device listing instead of the TUI
}

// ParseArgs parses os.Args, loads the configuration file, and applies
// any explicitly set flags on top of it.
func ParseArgs() (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{Command: "run", Mode: engine.ModeMic}

	var (
		configPath      string
		deviceID        int
		sampleRate      float64
		framesPerBuffer int
		lowLatency      bool
		verbose         bool
		bands           int
		fftSize         int
		wsEnabled       bool
		udpEnabled      bool
		loop            bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Real-time audio visualizer core",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Mode = engine.ModeMic
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	micCmd := &cobra.Command{
		Use:   "mic",
		Short: "Visualize the default (or selected) input device",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Mode = engine.ModeMic
		},
	}

	wavCmd := &cobra.Command{
		Use:   "wav [file]",
		Short: "Play and visualize a WAV file",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts.Mode = engine.ModeWav
			opts.Param = config.DefaultWavFile
			if len(args) == 1 {
				opts.Param = args[0]
			}
		},
	}
	wavCmd.Flags().BoolVar(&loop, "loop", false,
		"Restart playback at end of file instead of exiting")

	urlCmd := &cobra.Command{
		Use:   "url <address>",
		Short: "Stream, play, and visualize audio from a URL",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts.Mode = engine.ModeURL
			opts.Param = args[0]
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = "list"
		},
	}
	listCmd.Flags().BoolVar(&opts.Plain, "plain", false,
		"Print a plain device listing instead of the interactive browser")

	rootCmd.AddCommand(micCmd, wavCmd, urlCmd, listCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")
	rootCmd.PersistentFlags().IntVarP(&deviceID, "device", "d", config.MinDeviceID,
		"Audio device ID. Use 'list' to see available devices.")
	rootCmd.PersistentFlags().Float64VarP(&sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	rootCmd.PersistentFlags().IntVar(&bands, "bands", config.DefaultBands,
		"Number of log-spaced spectrum bands")
	rootCmd.PersistentFlags().IntVar(&fftSize, "fft-size", config.DefaultFFTSize,
		"Analysis window length in samples (power of 2)")
	rootCmd.PersistentFlags().BoolVar(&wsEnabled, "ws", false,
		"Publish band frames over WebSocket")
	rootCmd.PersistentFlags().BoolVar(&udpEnabled, "udp", false,
		"Publish band frames over UDP")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	// Flags the user actually set win over file and env values.
	flags := rootCmd.PersistentFlags()
	if flags.Changed("device") {
		cfg.Audio.InputDevice = deviceID
		cfg.Audio.OutputDevice = deviceID
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = sampleRate
		cfg.Stream.SampleRate = sampleRate
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = framesPerBuffer
	}
	if flags.Changed("low-latency") {
		cfg.Audio.LowLatency = lowLatency
	}
	if flags.Changed("bands") {
		cfg.Analysis.Bands = bands
	}
	if flags.Changed("fft-size") {
		cfg.Audio.FFTSize = fftSize
	}
	if flags.Changed("ws") {
		cfg.Transport.WSEnabled = wsEnabled
	}
	if flags.Changed("udp") {
		cfg.Transport.UDPEnabled = udpEnabled
	}
	if wavCmd.Flags().Changed("loop") {
		cfg.Playback.Loop = loop
	}
	if verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts.Config = cfg
	return opts, nil
}
