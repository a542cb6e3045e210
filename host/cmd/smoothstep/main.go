package main

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jessevdk/go-flags"

	"smoothstep/core"
	"smoothstep/host/config"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"smoothstep.json" description:"Configuration file"`
	Verbose bool   `short:"v" long:"verbose" description:"Log motion and link debug output"`

	Ports    PortsCommand    `command:"ports" description:"List serial ports"`
	Setup    SetupCommand    `command:"setup" description:"Create a configuration interactively"`
	Simulate SimulateCommand `command:"simulate" alias:"sim" description:"Run a move script against a simulated motor"`
	Drive    DriveCommand    `command:"drive" description:"Run a move script on motors wired to this host"`
	Serve    ServeCommand    `command:"serve" description:"Expose this host's motors over a serial link"`

	Move     MoveCommand     `command:"move" description:"Move a remote motor by a number of steps"`
	Goto     GotoCommand     `command:"goto" description:"Move a remote motor to a position"`
	Stop     StopCommand     `command:"stop" description:"Stop a remote motor"`
	Home     HomeCommand     `command:"home" description:"Return a remote motor to its origin"`
	Zero     ZeroCommand     `command:"zero" description:"Make a remote motor's position the origin"`
	Accel    AccelCommand    `command:"accel" description:"Set a remote motor's acceleration ramp"`
	Constant ConstantCommand `command:"constant" description:"Run a remote motor at constant speed"`
	Status   StatusCommand   `command:"status" description:"Show controller and motor state"`
	Watch    WatchCommand    `command:"watch" description:"Chart a remote motor live"`
	Console  ConsoleCommand  `command:"console" description:"Interactive command loop"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	parser.LongDescription = "SmoothStep - unipolar stepper motors with trapezoidal ramps.\n" +
		"Negative step counts go after --, e.g. smoothstep move -- -500"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if opts.Verbose {
			core.SetDebugWriter(func(msg string) { log.Println(msg) })
			core.SetDebugEnabled(true)
		}
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, falling back to the defaults
// when there is none.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if errors.Is(err, fs.ErrNotExist) {
		core.DebugPrintln("no " + opts.Config + ", using defaults")
		return config.Default(), nil
	}
	return cfg, err
}
