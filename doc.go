// Package leaderarm bridges a human-operated leader arm built from Feetech
// STS3215 servos to a powered MKRobot follower arm in real time.
//
// The leader arm runs with torque released so an operator can move it by
// hand. A fixed-rate control loop reads the leader joint angles, maps them
// to a follower command vector (six joint radians plus a gripper ratio) and
// dispatches it over serial. One or two leader/follower pairings can run at
// the same time.
//
// # Usage
//
// List attached serial devices and note their serial numbers or USB
// locations:
//
//	leaderarm list-ports
//
// Calibrate the leader's home pose, then start teleoperation:
//
//	leaderarm calibrate --port /dev/ttyACM0
//	leaderarm teleoperate --config teleop.json
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/leaderarm: CLI with teleoperate, monitor, calibrate and servo tools
//   - pkg/sts: STS3215 bus protocol, framing and register client
//   - pkg/robot: leader arm control and home-offset calibration
//   - pkg/locator: serial/location based port resolution
//   - pkg/teleop: teleoperation controller
//   - pkg/mkrobot: follower arm client
package leaderarm
