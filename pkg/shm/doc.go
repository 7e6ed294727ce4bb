// Package shm implements the shared memory segment the server publishes
// device and tracking information through.
//
// The segment is a single fixed-layout Layout struct. The server creates
// it with Create, which unlinks the name right after mapping so only the
// file descriptor keeps it alive; the descriptor is handed to clients over
// the socket and mapped there with Open.
//
//	header | origins[8] | devices[8] | HMD | wait frame | inputs[1024] | outputs[128]
//
// Devices reference origins by index and own a contiguous slice of the
// input and output tables: [FirstInputIndex, FirstInputIndex+NumInputs).
//
// WaitFrame is a futex word shared across processes. The render loop
// calls Post after every drawn frame; clients block in Wait.
package shm
