package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/mkygogo/leader-arm-st3215/pkg/locator"
	"github.com/mkygogo/leader-arm-st3215/pkg/mkrobot"
	"github.com/mkygogo/leader-arm-st3215/pkg/robot"
	"github.com/mkygogo/leader-arm-st3215/pkg/teleop"
)

type TeleoperateCommand struct {
	Config string `long:"config" short:"c" default:"teleop.json" description:"Teleoperation config file"`
	Status bool   `long:"status" description:"Print a status line per tick"`
}

func (c *TeleoperateCommand) Execute(args []string) error {
	log := newLogger()

	cfg, err := teleop.LoadConfigFrom(c.Config)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Leader Arm Teleoperation"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	fmt.Println("Resolving serial devices...")
	devices, ok := locator.Resolve(locator.USBEnumerator{}, cfg.Targets(), log)
	if !ok {
		fmt.Println(warnStyle.Render("Not every configured device was found."))
	}

	var pairings []teleop.PairingConfig
	for _, pair := range cfg.Pairs {
		leaderPort := devices[pair.Side+"_leader"]
		followerPort := devices[pair.Side+"_follower"]
		if leaderPort == "" || followerPort == "" {
			fmt.Printf("%s side %s: missing device, skipping\n", errorStyle.Render("✗"), pair.Side)
			continue
		}

		dirs, err := pair.DirectionVector()
		if err != nil {
			return err
		}

		calPath := pair.Calibration
		side := pair.Side
		pairings = append(pairings, teleop.PairingConfig{
			Side: side,
			OpenLeader: func() (teleop.Leader, error) {
				return robot.NewLeaderArm(robot.ArmConfig{
					Port:            leaderPort,
					CalibrationPath: calPath,
					Logger:          log,
				})
			},
			Follower:        mkrobot.New(mkrobot.Config{Port: followerPort, Logger: log}),
			GripperOpenDeg:  pair.GripperOpenDeg,
			GripperCloseDeg: pair.GripperCloseDeg,
			Directions:      dirs,
		})
		fmt.Printf("%s side %s: leader %s, follower %s\n",
			successStyle.Render("✓"), side, leaderPort, followerPort)
	}

	ctrl, err := teleop.NewController(teleop.ControllerConfig{
		Pairings: pairings,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Pose every leader arm at its home position, then press Enter to calibrate.")
	bufio.NewReader(os.Stdin).ReadString('\n')

	if err := ctrl.Calibrate(); err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}
	fmt.Println(successStyle.Render("Calibrated."))
	fmt.Println()
	fmt.Printf("Running at %v per tick. Ctrl-C to stop.\n", ctrl.Period())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if c.Status {
		go printStatus(ctx, ctrl)
	}

	if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Println()
	fmt.Println("Stopped.")
	return nil
}

func printStatus(ctx context.Context, ctrl *teleop.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ctrl.Snapshots():
			sides := make([]string, 0, len(snap.Sides))
			for side := range snap.Sides {
				sides = append(sides, side)
			}
			sort.Strings(sides)

			line := fmt.Sprintf("tick %6s", snap.TickDuration.Round(0))
			for _, side := range sides {
				st := snap.Sides[side]
				if st.Skipped {
					line += fmt.Sprintf("  %s %s", side, warnStyle.Render("skip"))
					continue
				}
				line += fmt.Sprintf("  %s grip %.2f", side, st.Action[teleop.NumAxes-1])
			}
			fmt.Print("\r" + dimStyle.Render(line))
		}
	}
}
