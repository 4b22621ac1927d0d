package health

// Checks for the topology service components.

// TopologyCheck reports on the size of the topology map. A map holding only
// the local node usually means no peer has announced yet.
func TopologyCheck(getTopologySize func() (nodes, links int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "topology",
			Details: make(map[string]any),
		}

		nodes, links := getTopologySize()
		check.Details["nodes"] = nodes
		check.Details["links"] = links

		switch {
		case nodes == 0:
			check.Status = StatusUnhealthy
			check.Message = "Topology map is empty"
		case nodes == 1:
			check.Status = StatusDegraded
			check.Message = "No peers mapped yet"
		default:
			check.Status = StatusHealthy
			check.Message = "Topology mapped"
		}

		return check
	}
}

// GossipCheck reports on the gossip layer: the local publisher and the
// subscriber connections to peers.
func GossipCheck(getGossipState func() (publishing bool, subscribers, peers int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "gossip",
			Details: make(map[string]any),
		}

		publishing, subscribers, peers := getGossipState()
		check.Details["publishing"] = publishing
		check.Details["subscribers"] = subscribers
		check.Details["configured_peers"] = peers

		switch {
		case !publishing:
			check.Status = StatusUnhealthy
			check.Message = "Publisher not running"
		case peers > 0 && subscribers == 0:
			check.Status = StatusUnhealthy
			check.Message = "No peer subscriptions active"
		case subscribers < peers:
			check.Status = StatusDegraded
			check.Message = "Some peer subscriptions down"
		default:
			check.Status = StatusHealthy
			check.Message = "Gossip healthy"
		}

		return check
	}
}

// ScheduleCheck reports whether the producer schedule is resolvable from the
// chain engine.
func ScheduleCheck(getSchedule func() ([]string, error)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "schedule",
			Details: make(map[string]any),
		}

		schedule, err := getSchedule()
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			return check
		}

		check.Details["producers"] = len(schedule)
		if len(schedule) == 0 {
			check.Status = StatusDegraded
			check.Message = "Producer schedule is empty"
		} else {
			check.Status = StatusHealthy
			check.Message = "Schedule resolved"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := float64(alloc) / float64(sys) * 100

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
