package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mkygogo/leader-arm-st3215/pkg/locator"
)

type ListPortsCommand struct{}

func (c *ListPortsCommand) Execute(args []string) error {
	ports, err := locator.USBEnumerator{}.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No USB serial ports found.")
		return nil
	}

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		serial := p.SerialNumber
		if serial == "" {
			serial = "-"
		}
		location := p.Location
		if location == "" {
			location = "-"
		}
		rows = append(rows, []string{p.Device, serial, location})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Device", "Serial", "Location").
		Rows(rows...)
	fmt.Println(t.Render())
	return nil
}
