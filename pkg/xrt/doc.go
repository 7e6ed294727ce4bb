// Package xrt defines the contracts between the IPC server and its
// collaborators: the device instance, devices, the compositor and its
// renderer, plus the plain value types shared with clients through
// shared memory and the wire protocol.
//
// Value types that live in shared memory (Pose, Fov, Input, Output) have
// a fixed layout made of 32- and 64-bit fields only. Do not reorder their
// fields without bumping the shared memory layout version.
package xrt
