package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/obsidianstack/licensewatch/pkg/types"
	"github.com/obsidianstack/licensewatch/server/internal/alerts"
	"github.com/obsidianstack/licensewatch/server/internal/config"
)

// printedAction is one action as written by a dry run.
type printedAction struct {
	InstanceID string               `json:"instanceId"`
	Group      string               `json:"actionGroupId"`
	Context    alerts.ActionContext `json:"context"`
}

// collector records actions instead of delivering them.
type collector struct {
	actions []printedAction
}

func (c *collector) ScheduleActions(instanceID, group string, ac alerts.ActionContext) {
	c.actions = append(c.actions, printedAction{instanceID, group, ac})
}

// evaluation is the JSON document printed by the evaluate command.
type evaluation struct {
	Clusters     int                            `json:"clusters"`
	LegacyAlerts int                            `json:"legacyAlerts"`
	States       map[string]types.InstanceState `json:"states"`
	Actions      []printedAction                `json:"actions,omitempty"`
}

// evaluate runs a single cycle against the configured state store and writes
// the updated states to out. Without dryRun the actions are delivered and the
// new state is persisted; a dry run only reads the persisted state.
func evaluate(ctx context.Context, cfg *config.Config, dryRun bool, out io.Writer) error {
	m := cfg.Monitoring

	st, err := openStore(ctx, m.State)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if dryRun {
		// Preview against the persisted state without writing it back.
		if err := st.Detach(); err != nil {
			return fmt.Errorf("detach state backend: %w", err)
		}
	}

	var (
		scheduler  alerts.ActionScheduler
		dispatcher *alerts.Dispatcher
		dry        = &collector{}
	)
	if dryRun {
		scheduler = dry
	} else {
		dispatcher = alerts.NewDispatcher(m.Alerts.Throttle, m.Alerts.Connectors)
		scheduler = dispatcher
	}

	clusters, legacy := fetchers(m)
	engine := alerts.NewEngine(alerts.EngineConfig{
		Clusters: clusters,
		Legacy:   legacy,
		States:   st,
		Actions:  scheduler,
		Options:  evaluatorOptions(m),
	})

	rep, err := engine.Execute(ctx)
	if err != nil {
		return err
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}

	doc := evaluation{
		Clusters:     rep.Clusters,
		LegacyAlerts: rep.LegacyAlerts,
		States:       make(map[string]types.InstanceState),
		Actions:      dry.actions,
	}
	for _, e := range st.List() {
		doc.States[e.InstanceID] = e.State
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
