package device

import (
	"errors"
	"testing"
	"time"

	"github.com/vango-dev/xripc/pkg/compositor"
	"github.com/vango-dev/xripc/pkg/shm"
	"github.com/vango-dev/xripc/pkg/xrt"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		max         int
		wantNames   []xrt.DeviceName
		wantOrigins int
	}{
		{
			name:        "hmd only",
			cfg:         Config{},
			max:         shm.MaxDevices,
			wantNames:   []xrt.DeviceName{xrt.DeviceGenericHMD},
			wantOrigins: 1,
		},
		{
			name:        "two controllers share origin",
			cfg:         Config{Controllers: 2},
			max:         shm.MaxDevices,
			wantNames:   []xrt.DeviceName{xrt.DeviceGenericHMD, xrt.DeviceSimpleController, xrt.DeviceSimpleController},
			wantOrigins: 1,
		},
		{
			name:        "tracker adds origin",
			cfg:         Config{Controllers: 1, Tracker: true},
			max:         shm.MaxDevices,
			wantNames:   []xrt.DeviceName{xrt.DeviceGenericHMD, xrt.DeviceSimpleController, xrt.DeviceGenericTracker},
			wantOrigins: 2,
		},
		{
			name:        "truncated to max",
			cfg:         Config{Controllers: 2, Tracker: true},
			max:         2,
			wantNames:   []xrt.DeviceName{xrt.DeviceGenericHMD, xrt.DeviceSimpleController},
			wantOrigins: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := NewSimulated(tt.cfg)
			if err != nil {
				t.Fatalf("NewSimulated() error = %v", err)
			}
			defer inst.Destroy()

			devices, err := inst.Select(tt.max)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if len(devices) != len(tt.wantNames) {
				t.Fatalf("len(devices) = %d, want %d", len(devices), len(tt.wantNames))
			}
			for i, d := range devices {
				if d.Name() != tt.wantNames[i] {
					t.Errorf("devices[%d].Name() = %v, want %v", i, d.Name(), tt.wantNames[i])
				}
			}
			if got := len(shm.CollectTrackingOrigins(devices)); got != tt.wantOrigins {
				t.Errorf("origins = %d, want %d", got, tt.wantOrigins)
			}
			if devices[0].HMD() == nil {
				t.Error("primary device has no HMD parts")
			}
		})
	}
}

func TestNewSimulatedInvalid(t *testing.T) {
	if _, err := NewSimulated(Config{Controllers: 3}); err == nil {
		t.Error("NewSimulated(3 controllers) succeeded, want error")
	}
}

func TestUpdateInputs(t *testing.T) {
	now := time.Unix(100, 0)
	inst, err := NewSimulated(Config{Controllers: 1, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatal(err)
	}
	devices, err := inst.Select(shm.MaxDevices)
	if err != nil {
		t.Fatal(err)
	}

	ctrl := devices[1]
	ctrl.UpdateInputs()
	in := ctrl.Inputs()
	if in[0].Timestamp != now.UnixNano() || in[0].Active != 1 {
		t.Errorf("input[0] = %+v, want timestamp %d and active", in[0], now.UnixNano())
	}
	if in[0].Value.Bool != 0 {
		t.Errorf("select at t=100s = %d, want 0", in[0].Value.Bool)
	}

	now = now.Add(time.Second)
	ctrl.UpdateInputs()
	if in := ctrl.Inputs(); in[0].Value.Bool != 1 {
		t.Errorf("select at t=101s = %d, want 1", in[0].Value.Bool)
	}
	if len(ctrl.Outputs()) != 1 {
		t.Errorf("len(Outputs()) = %d, want 1", len(ctrl.Outputs()))
	}
}

func TestPublishSimulatedDevices(t *testing.T) {
	inst, err := NewSimulated(Config{Controllers: 2, Tracker: true})
	if err != nil {
		t.Fatal(err)
	}
	devices, err := inst.Select(shm.MaxDevices)
	if err != nil {
		t.Fatal(err)
	}

	var l shm.Layout
	if err := shm.Publish(&l, devices); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if l.NumDevices != 4 || l.NumTrackingOrigins != 2 {
		t.Errorf("NumDevices = %d, NumTrackingOrigins = %d, want 4, 2", l.NumDevices, l.NumTrackingOrigins)
	}
	if l.HMD.Views[0].DisplayWidth != 640 {
		t.Errorf("DisplayWidth = %d, want 640", l.HMD.Views[0].DisplayWidth)
	}
	if l.Devices[3].TrackingOriginIndex != 1 {
		t.Errorf("tracker origin index = %d, want 1", l.Devices[3].TrackingOriginIndex)
	}
}

func TestCreateCompositor(t *testing.T) {
	inst, err := NewSimulated(Config{Controllers: 1, Compositor: compositor.Config{Width: 64, Height: 32}})
	if err != nil {
		t.Fatal(err)
	}
	devices, err := inst.Select(shm.MaxDevices)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := inst.CreateCompositor(devices[1]); !errors.Is(err, ErrNotHMD) {
		t.Errorf("CreateCompositor(controller) error = %v, want ErrNotHMD", err)
	}

	c, err := inst.CreateCompositor(devices[0])
	if err != nil {
		t.Fatalf("CreateCompositor() error = %v", err)
	}
	c.Destroy()

	inst.Destroy()
	if _, err := inst.Select(1); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Select() after Destroy error = %v, want ErrDestroyed", err)
	}
}
