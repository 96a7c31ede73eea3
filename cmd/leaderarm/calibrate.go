package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mkygogo/leader-arm-st3215/pkg/robot"
)

type CalibrateCommand struct {
	Port        string `long:"port" short:"p" required:"true" description:"Serial port of the leader arm"`
	Calibration string `long:"calibration" default:"calibration.json" description:"Calibration file to write"`
}

func (c *CalibrateCommand) Execute(args []string) error {
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

	fmt.Println(headerStyle.Render("Calibrate Leader Arm"))
	fmt.Println()

	if err := arm.SetTorque(false); err != nil {
		fmt.Println(warnStyle.Render("Warning: could not release torque: " + err.Error()))
	}

	fmt.Println("Move the arm to its home position, then press Enter.")
	bufio.NewReader(os.Stdin).ReadString('\n')

	if err := arm.CalibrateHome(); err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	fmt.Println(successStyle.Render("Calibration saved to " + c.Calibration))
	for _, id := range arm.ServoIDs() {
		fmt.Printf("  servo %d: offset %d, direction %+d\n",
			id, arm.Calibration().Offset(id), arm.Calibration().Direction(id))
	}
	return nil
}
