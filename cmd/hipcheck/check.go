package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mitre/hipcheck-fabric/internal/builtin"
	"github.com/mitre/hipcheck-fabric/internal/chunk"
	"github.com/mitre/hipcheck-fabric/internal/dispatch"
	"github.com/mitre/hipcheck-fabric/internal/engine"
	"github.com/mitre/hipcheck-fabric/internal/hostconfig"
	"github.com/mitre/hipcheck-fabric/internal/policyexpr"
	"github.com/mitre/hipcheck-fabric/internal/policyfile"
	"github.com/mitre/hipcheck-fabric/internal/scoring"
	"github.com/mitre/hipcheck-fabric/internal/wire"
)

// inboundHandler adapts an engine.Handle to dispatch.InboundHandler, the
// narrow callback PluginRouter uses to serve a sub-query a plugin issues
// back to the host. It lives here, not in internal/dispatch, because
// internal/engine already imports internal/dispatch — constructing the
// Handle inside dispatch itself would cycle.
type inboundHandler struct {
	handle *engine.Handle
}

func (h *inboundHandler) Serve(ctx context.Context, ep wire.Endpoint, keys []string) (dispatch.Result, error) {
	outputs, err := h.handle.Query(ctx, ep, keys)
	if err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.Result{Outputs: outputs}, nil
}

func checkCmd() *cobra.Command {
	var policyPath, cacheDir string

	cmd := &cobra.Command{
		Use:   "check <target>",
		Short: "Run the analysis tree named by a policy file against a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := viper.GetString("config_dir")
			code, err := runCheck(cmd.Context(), args[0], policyPath, configDir, cacheDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "hipcheck check: %v\n", err)
				os.Exit(exitError)
			}
			os.Exit(code)
			return nil
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "", "path to the KDL policy file (required)")
	cmd.Flags().StringVar(&cacheDir, "cache", "", "plugin cache directory (passed through, unused by the core)")
	_ = cmd.MarkFlagRequired("policy")

	return cmd
}

// runCheck executes one full run — connect, dispatch every leaf, evaluate
// policies, score, recommend — and returns the process exit code spec.md §6
// assigns to the outcome.
func runCheck(ctx context.Context, target, policyPath, configDir, _ string) (int, error) {
	runID := uuid.NewString()
	log := slog.With("run_id", runID, "target", target, "policy", policyPath)
	log.Info("starting check run")

	hc, err := hostconfig.Initialize(ctx, configDir)
	if err != nil {
		return exitError, fmt.Errorf("loading host configuration: %w", err)
	}

	doc, err := policyfile.Load(policyPath)
	if err != nil {
		return exitError, fmt.Errorf("loading policy file: %w", err)
	}

	router := dispatch.NewPluginRouter(chunk.Options{EffectiveMax: hc.EffectiveMaxBytes, LegacyCompat: hc.LegacyCompat})
	registry := builtin.NewRegistry()
	d := dispatch.New(registry, router)
	router.SetInboundHandler(&inboundHandler{handle: engine.New(d, nil, wire.Endpoint{})})

	for _, p := range doc.Plugins {
		if err := router.Connect(ctx, p.Endpoint.Publisher, p.Endpoint.Plugin, p.Manifest); err != nil {
			return exitError, fmt.Errorf("connecting to plugin %s: %w", p.Endpoint, err)
		}
	}

	targetKey, err := json.Marshal(target)
	if err != nil {
		return exitError, fmt.Errorf("encoding target: %w", err)
	}

	if err := evaluateLeaves(ctx, d, doc, []string{string(targetKey)}, log); err != nil {
		return exitError, fmt.Errorf("evaluating analysis tree: %w", err)
	}

	result := scoring.Evaluate(doc.Tree)
	for _, leaf := range result.Leaves {
		log.Info("leaf scored", "endpoint", leaf.Endpoint.String(), "score", leaf.Score, "errored", leaf.Errored)
	}

	scoreOutput, err := json.Marshal(map[string]float64{"score": result.Score})
	if err != nil {
		return exitError, fmt.Errorf("encoding score for investigate policy: %w", err)
	}
	investigate, _, err := policyexpr.Evaluate(doc.Investigate, json.RawMessage(scoreOutput))
	if err != nil {
		return exitError, fmt.Errorf("evaluating investigate policy: %w", err)
	}

	fmt.Printf("score: %.2f\n", result.Score)
	if investigate {
		fmt.Println("recommendation: Investigate")
		return exitInvestigate, nil
	}
	fmt.Println("recommendation: Pass")
	return exitPass, nil
}

// evaluateLeaves collects every leaf in the analysis tree and dispatches
// them concurrently (one errgroup.Group goroutine per leaf, with no
// concurrency limit), since each leaf's dispatch
// and policy evaluation is independent of its siblings and the dispatcher's
// cache/memo table is already safe for concurrent use. Each leaf's Score and
// Errored are mutated in place so a later scoring.Evaluate sees the real
// verdicts.
func evaluateLeaves(ctx context.Context, d *dispatch.Dispatcher, doc *policyfile.Document, keys []string, log *slog.Logger) error {
	var leaves []*scoring.Node
	var collect func(n *scoring.Node)
	collect = func(n *scoring.Node) {
		if len(n.Children) == 0 {
			leaves = append(leaves, n)
			return
		}
		for _, c := range n.Children {
			collect(c)
		}
	}
	collect(doc.Tree)

	g, gctx := errgroup.WithContext(ctx)
	for _, leaf := range leaves {
		leaf := leaf
		g.Go(func() error {
			evaluateLeaf(gctx, d, doc, leaf, keys, log)
			return nil
		})
	}
	return g.Wait()
}

func evaluateLeaf(ctx context.Context, d *dispatch.Dispatcher, doc *policyfile.Document, leaf *scoring.Node, keys []string, log *slog.Logger) {
	res, err := d.Query(ctx, leaf.Endpoint, keys)
	if err != nil {
		log.Warn("leaf dispatch failed", "endpoint", leaf.Endpoint.String(), "error", err)
		leaf.Errored = true
		leaf.Score = 1.0
		return
	}

	policyExpr := doc.Policies[leaf]
	if policyExpr == "" {
		log.Warn("leaf has no policy expression, marking it errored", "endpoint", leaf.Endpoint.String())
		leaf.Errored = true
		leaf.Score = 1.0
		return
	}

	passed, _, err := policyexpr.Evaluate(policyExpr, json.RawMessage(res.Outputs[0]))
	if err != nil {
		log.Warn("policy evaluation failed", "endpoint", leaf.Endpoint.String(), "error", err)
		leaf.Errored = true
		leaf.Score = 1.0
		return
	}
	if !passed {
		leaf.Score = 1.0
	}
}
