package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkygogo/leader-arm-st3215/pkg/robot"
)

type MonitorCommand struct {
	Port        string        `long:"port" short:"p" required:"true" description:"Serial port of the leader arm"`
	Calibration string        `long:"calibration" default:"calibration.json" description:"Calibration file"`
	Interval    time.Duration `long:"interval" default:"100ms" description:"Poll interval"`
	Raw         bool          `long:"raw" description:"Show raw servo positions instead of degrees"`
}

func (c *MonitorCommand) Execute(args []string) error {
	log := newLogger()

	arm, err := robot.NewLeaderArm(robot.ArmConfig{
		Port:            c.Port,
		CalibrationPath: c.Calibration,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	defer arm.Close()

	if err := arm.SetTorque(false); err != nil {
		fmt.Println(warnStyle.Render("Warning: could not release torque: " + err.Error()))
	}

	fmt.Println(headerStyle.Render("Monitoring " + c.Port))
	fmt.Println(dimStyle.Render("Ctrl-C to stop"))
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		default:
		}

		fmt.Print("\r" + c.formatLine(arm))
		time.Sleep(c.Interval)
	}
}

func (c *MonitorCommand) formatLine(arm *robot.LeaderArm) string {
	line := ""
	if c.Raw {
		raw := arm.RawPositions()
		for _, id := range arm.ServoIDs() {
			if raw[id] == robot.PositionUnavailable {
				line += fmt.Sprintf("  %d:%s", id, warnStyle.Render("----"))
				continue
			}
			line += fmt.Sprintf("  %d:%4d", id, raw[id])
		}
		return line
	}

	angles := arm.Angles()
	for _, id := range arm.ServoIDs() {
		deg, ok := angles[id]
		if !ok {
			line += fmt.Sprintf("  %d:%s", id, warnStyle.Render("-------"))
			continue
		}
		line += fmt.Sprintf("  %d:%7.2f", id, deg)
	}
	return line
}
