package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Verbose bool `long:"verbose" short:"v" description:"Enable debug logging"`

	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Start teleoperation (leader-follower control)"`
	Monitor     MonitorCommand     `command:"monitor" description:"Print live joint positions of a leader arm"`
	Calibrate   CalibrateCommand   `command:"calibrate" description:"Record the current pose as the home pose"`
	SetID       SetIDCommand       `command:"set-id" description:"Change the bus ID of a servo"`
	Scan        ScanCommand        `command:"scan" description:"Scan the bus for servos"`
	ListPorts   ListPortsCommand   `command:"list-ports" description:"List USB serial ports with serial numbers and locations"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newLogger() *logrus.Logger {
	log := logrus.New()
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

func main() {
	parser.LongDescription = "leaderarm - teleoperation CLI for STS3215 leader arms"

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
