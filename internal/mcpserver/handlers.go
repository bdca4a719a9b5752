package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/model"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/orchestrator"
)

// runScenarioTimeout bounds a soak-profile run plus orchestrator overhead.
const runScenarioTimeout = 2 * time.Minute

// handleRunScenario drives a full orchestrator run and returns the report.
func handleRunScenario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, runScenarioTimeout)
	defer cancel()

	args := getArgs(request)
	profile := stringArg(args, "profile", "smoke")

	var only []string
	if onlyStr := stringArg(args, "only", ""); onlyStr != "" {
		only = strings.Split(onlyStr, ",")
		for i := range only {
			only[i] = strings.TrimSpace(only[i])
		}
	}

	var seed int64
	if v, ok := args["seed"]; ok && v != nil {
		if f, ok := v.(float64); ok {
			seed = int64(f)
		}
	}

	cfg := orchestrator.RunConfig{Profile: profile, Seed: seed, Only: only, Quiet: true}
	report, err := orchestrator.New(cfg).Run(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("run failed: %v", err)), nil
	}

	jsonData, err := json.Marshal(report)
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// handleListComponents returns the static set of driveable components.
func handleListComponents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	entries := []entry{
		{"cpuscheduler", "Per-CPU FIFO run queues across N simulated CPUs with periodic load balancing."},
		{"rcuengine", "RCU segmented callback list, NOCB offload workers, and an SRCU reader domain."},
		{"trafficshaper", "HTB hierarchical token-bucket class tree paired with an ETF deadline-ordered packet queue."},
		{"congestion", "Per-flow CUBIC/BIC congestion-window controllers."},
		{"tickmanager", "Per-CPU tick devices with NOHZ tickless-idle transitions and a load-balancing thread."},
	}
	jsonData, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// handleExplainAnomaly provides detailed explanation for a specific anomaly metric.
func handleExplainAnomaly(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	anomalyID := stringArg(args, "anomaly_id", "")
	if anomalyID == "" {
		return errResult("anomaly_id is required"), nil
	}

	desc, ok := anomalyExplanations[anomalyID]
	if !ok {
		return newTextResult(fmt.Sprintf(
			"No specific explanation for anomaly '%s'. "+
				"General recommendation: check the component's USE metrics (Utilization, Saturation, Errors) "+
				"in a run_scenario report and compare against its thresholds.",
			anomalyID,
		)), nil
	}

	return newTextResult(desc), nil
}

// handleListAnomalies returns all known anomaly metric IDs grouped by component.
func handleListAnomalies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		ID        string `json:"id"`
		Component string `json:"component"`
		Brief     string `json:"brief"`
	}

	componentOf := make(map[string]string)
	for _, t := range model.DefaultThresholds() {
		componentOf[t.Metric] = t.Component
	}

	var entries []entry
	for id := range anomalyExplanations {
		brief := id
		if desc, ok := anomalyExplanations[id]; ok {
			for _, line := range strings.Split(desc, "\n") {
				line = strings.TrimSpace(line)
				if line != "" {
					brief = strings.ReplaceAll(line, "**", "")
					break
				}
			}
		}
		entries = append(entries, entry{ID: id, Component: componentOf[id], Brief: brief})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Component != entries[j].Component {
			return entries[i].Component < entries[j].Component
		}
		return entries[i].ID < entries[j].ID
	})

	jsonData, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// errResult creates an MCP tool-level error result (IsError=true).
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}

var anomalyExplanations = map[string]string{
	"scheduler_capacity_drops": `**Scheduler Capacity Drops**
Tasks are being rejected because the scheduler already holds MaxTasks tasks.
**Root Causes:**
- Workload intensity outstrips NumCPUs for the configured profile.
- A runaway producer submitting tasks faster than the scheduler drains them.
**Recommendations:**
- Raise NumCPUs or lower the workload's cpuscheduler intensity multiplier.
- Check ContextSwitches/Migrations in the same report for load-balance thrash.`,

	"srcu_reader_saturation": `**SRCU Reader Saturation**
Active SRCU readers are approaching MaxSrcuReaders, risking rejected
read-side critical sections.
**Root Causes:**
- Read-side critical sections held too long relative to grace-period cadence.
- Workload submitting far more ReadLock calls than the configured reader slots.
**Recommendations:**
- Shorten the simulated critical section or raise GracePeriod.
- Check Srcu.ActiveReaders trend across successive runs with the diff command.`,

	"htb_drop_rate": `**HTB Drop Rate**
Packets are being dropped because a class's token and ceil buckets are
both exhausted (CantSend; a class borrows only from its own ceil bucket).
**Root Causes:**
- RootRate/RootCeil configured below the offered workload rate.
- Too many sibling classes competing for the same ceiling.
**Recommendations:**
- Raise the class's Rate/Ceil or reduce trafficshaper workload intensity.
- Check per-class Overlimit vs Drops to see whether borrowing is even possible.`,

	"etf_deadline_misses": `**ETF Deadline Misses**
Packets are being dequeued after their Deadline has already passed.
**Root Causes:**
- EtfBandwidth too low for the offered packet rate/size mix.
- Deadlines set tighter than one queue-depth's worth of transmission time.
**Recommendations:**
- Raise EtfBandwidth or EtfMaxQueueDepth.
- Check Etf.QueueLen alongside this metric — a chronically full queue means
  the bandwidth, not the deadline policy, is the bottleneck.`,

	"congestion_loss_rate": `**Congestion Loss Rate**
The total number of LOSS events summed across simulated flows is high,
well above the workload's expected ~6% loss roll.
**Root Causes:**
- Workload's loss probability configured unrealistically high for the scenario.
- Cwnd oscillating near Ssthresh, repeatedly re-triggering loss response.
**Recommendations:**
- Compare Cubic vs Bic flows' LastMaxCwnd recovery via run_scenario with only=congestion.
- Check HystartExits — frequent early slow-start exits amplify loss sensitivity.`,

	"tick_forced_restarts": `**Tick Forced Restarts**
The load thread is repeatedly forcing idle CPUs back to Active, overriding
their NOHZ tickless state.
**Root Causes:**
- More than MaxIdleBalance (10) CPUs sitting Idle at once when the load
  thread wakes, which is only possible when NumCPUs exceeds 10.
**Recommendations:**
- Keep NumCPUs at 10 or below, or keep more CPUs Active.
- The restarts come from tickmanager alone; cpuscheduler counters do not drive them.`,
}
