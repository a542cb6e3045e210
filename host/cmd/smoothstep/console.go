package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"smoothstep/host/client"
	"smoothstep/host/moves"
)

type ConsoleCommand struct {
	RemoteOptions
}

func (c *ConsoleCommand) Execute(args []string) error {
	return c.with(func(ctx context.Context, cl *client.Client, m *client.Motor) error {
		info, err := cl.Info()
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("Connected: controller v%d, %d motor(s), driving motor %d", info.Version, info.Motors, c.Motor)))
		fmt.Println("Enter moves (type 'help' for available commands, 'quit' to exit):")

		runner := moves.Runner{Target: moves.Remote(m, c.Poll)}
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			switch line {
			case "quit", "exit", "q":
				return nil
			case "help", "?":
				printConsoleHelp()
				continue
			case "state", "s":
				if err := printState(m); err != nil {
					fmt.Println(errStyle.Render(err.Error()))
				}
				continue
			}

			steps, err := moves.Parse(line)
			if err != nil {
				fmt.Println(errStyle.Render(err.Error()))
				continue
			}
			if err := runner.Run(ctx, steps); err != nil {
				fmt.Println(errStyle.Render(err.Error()))
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
			if err := printState(m); err != nil {
				fmt.Println(errStyle.Render(err.Error()))
			}
		}
	})
}

func printConsoleHelp() {
	fmt.Println(`Moves (several per line run in order, each waits for the motor):
  rel:N          move N steps
  abs:N          move to position N
  rand:N         move a random amount in [-N, N]
  stop:MS        stop the preceding move after MS milliseconds
  wait:MS        pause
  zero           make the current position the origin
  home           return to the origin within the current revolution
  home:turns     return to the origin including whole revolutions
  accel:MIN/MAX/MS  acceleration ramp in rpm and ms
  const:RPM      constant speed
Other:
  state          show the motor state
  quit           leave`)
}
