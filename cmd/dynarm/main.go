package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Setup       SetupCommand       `command:"setup" description:"Scan for arms and calibrate them"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Start teleoperation (leader-follower control)"`
	Record      RecordCommand      `command:"record" description:"Record teleoperated episodes to the dataset"`
	Replay      ReplayCommand      `command:"replay" description:"Replay a recorded episode on the follower"`
	Stats       StatsCommand       `command:"stats" description:"Show dataset episodes and per-joint statistics"`
	Info        InfoCommand        `command:"info" description:"Dump register state of the motors on a port"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "dynarm - control, record and replay Dynamixel leader-follower arms"

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
