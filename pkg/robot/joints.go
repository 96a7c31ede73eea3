// Package robot provides leader arm control and home-offset calibration.
package robot

// JointName identifies a joint in the arm.
type JointName string

// Joint names for the seven-servo leader arm. Servo ids 1-7 follow this
// order: six rotational joints plus the gripper.
const (
	ShoulderPan  JointName = "shoulder_pan"
	ShoulderLift JointName = "shoulder_lift"
	ElbowFlex    JointName = "elbow_flex"
	ForearmRoll  JointName = "forearm_roll"
	WristFlex    JointName = "wrist_flex"
	WristRoll    JointName = "wrist_roll"
	Gripper      JointName = "gripper"
)

// GripperID is the servo id of the gripper joint.
const GripperID = 7

// AllJoints returns all joint names in servo id order (ids 1-7).
func AllJoints() []JointName {
	return []JointName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		ForearmRoll,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// ServoIDs returns the default servo ids, 1 through 7.
func ServoIDs() []int {
	ids := make([]int, len(AllJoints()))
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}
