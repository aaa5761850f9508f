package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial"

	"github.com/tau-robotics/dynarm/pkg/bus"
	"github.com/tau-robotics/dynarm/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Dynarm Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━"))
	fmt.Println()

	// Step 1: Scan for arms
	config := scanForArms()

	// Step 2: Calibrate leader
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating Leader Arm ━━━"))
	fmt.Println()
	calibrateArm(&config.Leader, robot.LeaderMotors(), "leader")

	// Save after leader calibration
	if err := config.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	// Step 3: Calibrate follower
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating Follower Arm ━━━"))
	fmt.Println()
	calibrateArm(&config.Follower, robot.FollowerMotors(), "follower")

	if err := config.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", robot.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Start teleoperation with: " + headerStyle.Render("dynarm teleoperate"))

	return nil
}

func scanForArms() *robot.Config {
	fmt.Println("Scanning for robot arms...")
	fmt.Println()

	arms := findArms()

	if len(arms) == 0 {
		fmt.Println("No arms found.")
		fmt.Println("Make sure your arms are connected and powered on.")
		os.Exit(1)
	}

	fmt.Printf("Found %d arm(s). Let's identify them...\n\n", len(arms))

	// Identify each arm by wiggling it
	var leaderPort, followerPort string

	for _, arm := range arms {
		role := identifyArmWithWiggle(arm, leaderPort == "", followerPort == "")
		switch role {
		case "leader":
			leaderPort = arm.port
		case "follower":
			followerPort = arm.port
		}

		if leaderPort != "" && followerPort != "" {
			break
		}
	}

	fmt.Println()

	if leaderPort == "" || followerPort == "" {
		fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
		if leaderPort == "" {
			fmt.Println("Leader arm not identified.")
		}
		if followerPort == "" {
			fmt.Println("Follower arm not identified.")
		}
		fmt.Println()
		fmt.Println("Both leader and follower are required for teleoperation.")
		os.Exit(1)
	}

	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Arms identified:"))
	fmt.Printf("  Leader:   %s\n", leaderPort)
	fmt.Printf("  Follower: %s\n", followerPort)

	return &robot.Config{
		Leader: robot.ArmConfig{
			Port: leaderPort,
		},
		Follower: robot.ArmConfig{
			Port: followerPort,
		},
	}
}

type armInfo struct {
	port   string
	motors []bus.FoundMotor
}

func findArms() []armInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		b, err := bus.New(bus.Config{Port: port})
		if err != nil {
			continue
		}
		if err := b.Connect(); err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		found, err := b.Scan(ctx, 1, 6)
		cancel()
		b.Close()

		if err != nil {
			continue
		}

		// A full arm answers on all six IDs
		if isArm(found) {
			fmt.Printf("  Found arm on %s\n", port)
			arms = append(arms, armInfo{port: port, motors: found})
		}
	}

	return arms
}

func isArm(motors []bus.FoundMotor) bool {
	if len(motors) != 6 {
		return false
	}

	ids := make(map[int]bool)
	for _, m := range motors {
		ids[m.ID] = true
	}

	for i := 1; i <= 6; i++ {
		if !ids[i] {
			return false
		}
	}

	return true
}

func identifyArmWithWiggle(arm armInfo, needLeader, needFollower bool) string {
	// Drive shoulder_pan only; the layout does not matter yet, any
	// X-series table works for the wiggle.
	b, err := bus.New(bus.Config{
		Port:   arm.port,
		Motors: []bus.Motor{{Name: string(robot.ShoulderPan), ID: 1, Model: "x_series"}},
	})
	if err != nil {
		return ""
	}
	if err := b.Connect(); err != nil {
		return ""
	}
	defer b.Close()

	ctx := context.Background()
	name := string(robot.ShoulderPan)

	originalPos, err := b.ReadOne(ctx, bus.RegPresentPosition, name)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return ""
	}

	if err := b.WriteOne(ctx, bus.RegTorqueEnable, bus.TorqueEnabled, name); err != nil {
		fmt.Printf("  Error enabling motor: %v\n", err)
		return ""
	}

	fmt.Printf("\n  Wiggling arm on %s...\n", arm.port)

	// Single gentle movement, slowed down by the profile velocity
	b.WriteOne(ctx, bus.RegProfileVelocity, 60, name)
	wiggleAmount := 30
	b.WriteOne(ctx, bus.RegGoalPosition, originalPos+wiggleAmount, name)
	time.Sleep(600 * time.Millisecond)
	b.WriteOne(ctx, bus.RegGoalPosition, originalPos-wiggleAmount, name)
	time.Sleep(600 * time.Millisecond)
	b.WriteOne(ctx, bus.RegGoalPosition, originalPos, name)
	time.Sleep(600 * time.Millisecond)

	b.WriteOne(ctx, bus.RegProfileVelocity, 0, name)
	b.WriteOne(ctx, bus.RegTorqueEnable, bus.TorqueDisabled, name)

	// Build options based on what's still needed
	var options []huh.Option[string]
	if needLeader {
		options = append(options, huh.NewOption("Leader (the one you move by hand)", "leader"))
	}
	if needFollower {
		options = append(options, huh.NewOption("Follower (the one that follows)", "follower"))
	}
	options = append(options, huh.NewOption("Skip this arm", "skip"))

	var role string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which arm is on %s?", arm.port)).
				Description("The arm that just wiggled").
				Options(options...).
				Value(&role),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	if role == "skip" {
		return ""
	}

	return role
}

func calibrateArm(armConfig *robot.ArmConfig, motors []bus.Motor, armName string) {
	fmt.Printf("Calibrating %s arm on %s\n", armName, armConfig.Port)
	fmt.Println()

	b, err := bus.New(bus.Config{Port: armConfig.Port, Motors: motors})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating bus: %v\n", err)
		os.Exit(1)
	}
	if err := b.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to arm: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	ctx := context.Background()

	// Torque off so the user can move the arm freely
	if err := robot.ResetArm(ctx, b); err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing arm: %v\n", err)
		os.Exit(1)
	}

	// Phase 1: two reference poses give homing offsets and drive modes
	fmt.Println(subHeaderStyle.Render("Reference poses"))
	waitForUser("Move the arm to its zero pose (all joints straight, gripper closed).")

	zeroPositions, err := b.Read(ctx, bus.RegPresentPosition)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading positions: %v\n", err)
		os.Exit(1)
	}
	offsets := robot.HomingOffsets(zeroPositions, robot.ZeroPose)

	waitForUser("Now rotate every joint a quarter turn clockwise.")

	rotatedPositions, err := b.Read(ctx, bus.RegPresentPosition)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading positions: %v\n", err)
		os.Exit(1)
	}
	driveModes := robot.DriveModes(rotatedPositions, offsets, robot.RotatedPose)
	offsets = robot.RefineHomingOffsets(rotatedPositions, driveModes, robot.RotatedPose)

	// Apply the pose calibration so the range phase records calibrated
	// positions
	names := b.MotorNames()
	calibration := make(bus.Calibration, len(names))
	for i, name := range names {
		calibration[name] = bus.MotorCalibration{
			ID:           motors[i].ID,
			DriveMode:    driveModes[i],
			HomingOffset: offsets[i],
		}
	}
	b.SetCalibration(calibration)

	// Phase 2: record min/max while the user explores the range of motion
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println("Explore the full range of motion for all joints.")
	fmt.Println()

	positions, err := b.Read(ctx, bus.RegPresentPosition)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading positions: %v\n", err)
		os.Exit(1)
	}

	model := newCalibrationModel(b, positions)
	p := tea.NewProgram(model)
	finalModel, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running calibration: %v\n", err)
		os.Exit(1)
	}

	cm := finalModel.(calibrationModel)
	for i, name := range names {
		cal := calibration[name]
		cal.RangeMin = cm.minPositions[i]
		cal.RangeMax = cm.maxPositions[i]
		calibration[name] = cal
	}

	armConfig.Calibration = calibration
	fmt.Println()
	fmt.Printf("%s arm calibrated.\n", strings.Title(armName))
}

func waitForUser(prompt string) {
	fmt.Println(prompt)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("").
				Affirmative("Continue").
				Negative("").
				Value(new(bool)),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
}

// Calibration TUI model
type calibrationModel struct {
	bus          *bus.Bus
	curPositions []int
	minPositions []int
	maxPositions []int
	quitting     bool
}

type tickMsg time.Time

func newCalibrationModel(b *bus.Bus, positions []int) calibrationModel {
	m := calibrationModel{
		bus:          b,
		curPositions: positions,
		minPositions: make([]int, len(positions)),
		maxPositions: make([]int, len(positions)),
	}
	copy(m.minPositions, positions)
	copy(m.maxPositions, positions)
	return m
}

func (m calibrationModel) Init() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		positions, err := m.bus.Read(context.Background(), bus.RegPresentPosition)
		if err == nil {
			for i, pos := range positions {
				m.curPositions[i] = pos
				if pos < m.minPositions[i] {
					m.minPositions[i] = pos
				}
				if pos > m.maxPositions[i] {
					m.maxPositions[i] = pos
				}
			}
		}
		return m, tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableMotorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	names := m.bus.MotorNames()
	rows := make([][]string, 0, len(names))
	ranges := make([]int, 0, len(names))
	for i, name := range names {
		rangeSize := m.maxPositions[i] - m.minPositions[i]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d", m.curPositions[i]),
			fmt.Sprintf("%d", m.minPositions[i]),
			fmt.Sprintf("%d", m.maxPositions[i]),
			fmt.Sprintf("%d", rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableMotorStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}
