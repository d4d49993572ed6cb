package burnin

import (
	"context"
	"fmt"

	"github.com/pilebones/go-udev/netlink"
	log "github.com/sirupsen/logrus"
)

// WatchHotplug monitors udev events for the lifetime of ctx and routes
// the removal of any selected device into the unified abort path: a
// drive yanked mid-test must not leave the run half-recorded. Failure to
// open the netlink socket (containers, tests) only disables the watcher.
func (o *Orchestrator) WatchHotplug(ctx context.Context) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		log.WithError(err).Warn("udev netlink unavailable, hotplug watch disabled")
		return
	}
	defer conn.Close()

	matcher := &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{Env: map[string]string{"SUBSYSTEM": "block"}},
		},
	}

	eventChan := make(chan netlink.UEvent)
	errChan := make(chan error)
	quit := conn.Monitor(eventChan, errChan, matcher)
	defer close(quit)

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errChan:
			log.WithError(err).Warn("udev monitor error, hotplug watch stopped")
			return
		case event := <-eventChan:
			if event.Action != netlink.REMOVE {
				continue
			}
			devName := event.Env["DEVNAME"]
			for _, d := range o.Selected() {
				if d.DevPath == devName && o.activePhase() != "" {
					o.Abort(fmt.Sprintf("selected drive %s (%s) was removed", d.Key, devName), ExitAborted)
				}
			}
		}
	}
}
