package runtime

import (
	"context"
	"time"

	"github.com/wippyai/framehost/registry"
	"github.com/wippyai/framehost/resource"
)

// InstanceInfo describes one registered guest.
type InstanceInfo struct {
	Loaded      time.Time
	Name        string
	Source      string
	Target      string
	Updates     uint64
	Traps       uint64
	MemoryBytes uint32
	Handle      registry.Handle
	Active      bool
}

// Snapshot is a point-in-time view of the host.
type Snapshot struct {
	Instances []InstanceInfo
	Pending   []resource.PendingRead
	Frames    uint64
	State     string
}

// Snapshot collects host state on the control goroutine.
func (r *Runtime) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := r.loop.Call(ctx, func(context.Context) error {
		for h, inst := range r.table.All() {
			info := InstanceInfo{
				Loaded:  inst.loaded,
				Name:    inst.name,
				Source:  inst.source,
				Target:  inst.target,
				Updates: inst.updates,
				Traps:   inst.traps,
				Handle:  h,
				Active:  inst.active,
			}
			if mem := inst.exports.Memory(); mem != nil {
				info.MemoryBytes = mem.Size()
			}
			s.Instances = append(s.Instances, info)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.Pending = r.reads.Pending()
	s.Frames = r.loop.Frames()
	s.State = r.loop.State().String()
	return s, nil
}
