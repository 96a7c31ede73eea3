package main

import (
	"fmt"
	"time"

	"github.com/mkygogo/leader-arm-st3215/pkg/sts"
)

type SetIDCommand struct {
	Port string `long:"port" short:"p" required:"true" description:"Serial port of the bus"`
	From int    `long:"from" required:"true" description:"Current servo id"`
	To   int    `long:"to" required:"true" description:"New servo id"`
}

func (c *SetIDCommand) Execute(args []string) error {
	client, err := sts.NewClient(sts.ClientConfig{Port: c.Port, Logger: newLogger()})
	if err != nil {
		return err
	}
	defer client.Close()

	if !client.Ping(c.From) {
		return fmt.Errorf("no servo answering at id %d", c.From)
	}
	if client.Ping(c.To) {
		return fmt.Errorf("id %d is already taken on this bus", c.To)
	}

	fmt.Printf("Changing servo id %d -> %d\n", c.From, c.To)
	if err := client.ChangeID(c.From, c.To); err != nil {
		return err
	}

	// The EEPROM write needs a moment before the servo answers on the
	// new id.
	time.Sleep(100 * time.Millisecond)

	if !client.Ping(c.To) {
		return fmt.Errorf("servo did not answer at new id %d, check the bus", c.To)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Servo now answers at id %d", c.To)))
	return nil
}
