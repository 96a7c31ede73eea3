package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mkygogo/leader-arm-st3215/pkg/sts"
)

type ScanCommand struct {
	Port  string `long:"port" short:"p" required:"true" description:"Serial port of the bus"`
	Start int    `long:"start" default:"1" description:"First id to probe"`
	End   int    `long:"end" default:"20" description:"Last id to probe"`
	SetID int    `long:"set-id" description:"Assign this id to the single servo found"`
}

func (c *ScanCommand) Execute(args []string) error {
	client, err := sts.NewClient(sts.ClientConfig{Port: c.Port, Logger: newLogger()})
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("Scanning ids %d-%d on %s...\n", c.Start, c.End, c.Port)

	found, err := client.Scan(context.Background(), c.Start, c.End)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No servos found.")
		return nil
	}

	rows := make([][]string, 0, len(found))
	for _, id := range found {
		voltage := "-"
		if v, err := client.ReadVoltage(id); err == nil {
			voltage = fmt.Sprintf("%.1f V", float64(v)/10)
		}
		temp := "-"
		if t, err := client.ReadTemperature(id); err == nil {
			temp = fmt.Sprintf("%d °C", t)
		}
		pos := "-"
		if p, err := client.ReadPosition(id); err == nil {
			pos = fmt.Sprintf("%d", p)
		}
		rows = append(rows, []string{fmt.Sprintf("%d", id), pos, voltage, temp})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "Position", "Voltage", "Temp").
		Rows(rows...)
	fmt.Println(t.Render())

	if c.SetID == 0 {
		return nil
	}

	// Reassignment is only safe when exactly one servo is on the bus,
	// otherwise a broadcast-style mistake could rename several at once.
	if len(found) != 1 {
		return fmt.Errorf("refusing to set id: found %d servos, connect exactly one", len(found))
	}
	if found[0] == c.SetID {
		fmt.Printf("Servo already has id %d.\n", c.SetID)
		return nil
	}

	fmt.Printf("Assigning id %d to the servo at id %d\n", c.SetID, found[0])
	if err := client.ChangeID(found[0], c.SetID); err != nil {
		return err
	}
	if !client.Ping(c.SetID) {
		return fmt.Errorf("servo did not answer at new id %d", c.SetID)
	}
	fmt.Println(successStyle.Render("Done."))
	return nil
}
