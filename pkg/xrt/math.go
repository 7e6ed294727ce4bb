package xrt

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float32
}

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a rotation quaternion.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the quaternion with no rotation.
var IdentityQuat = Quat{W: 1}

// Pose is an orientation and a position in meters.
type Pose struct {
	Orientation Quat
	Position    Vec3
}

// IdentityPose is the pose at the origin with no rotation.
var IdentityPose = Pose{Orientation: IdentityQuat}

// Fov holds the four half-angles of a view frustum in radians.
type Fov struct {
	AngleLeft, AngleRight, AngleUp, AngleDown float32
}
