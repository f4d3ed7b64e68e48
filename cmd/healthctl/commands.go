package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/assistant"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/insight"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

func newAskCmd(opts *globalOptions) *cobra.Command {
	var preferLocal bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a free-form question",
		Long: `Run one conversation turn: clarification check, intent parsing,
aggregation, insights and the response orchestrator.

Example:
  healthctl ask --samples export.json --lang en "steps trend this week"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := opts.anchor()
			if err != nil {
				return err
			}
			p, err := buildPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := p.service.HandleTurn(cmd.Context(), assistant.TurnRequest{
				Subject:     p.subject,
				Query:       strings.Join(args, " "),
				Lang:        metric.NormalizeLang(opts.lang),
				PreferLocal: preferLocal,
				AsOf:        asOf,
			})
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&preferLocal, "prefer-local", false, "Route to the local model first")
	return cmd
}

func newTrendCmd(opts *globalOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "trend <metric>",
		Short: "Daily values and change rate for one metric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, asOf, err := metricArgs(opts, args[0], days)
			if err != nil {
				return err
			}
			p, err := buildPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.engine.Authorize(cmd.Context()); err != nil {
				return err
			}
			trend, err := p.engine.Trend(cmd.Context(), kind, days, asOf)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), trend)
		},
	}
	addDaysFlag(cmd, &days)
	return cmd
}

func newCompareCmd(opts *globalOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "compare <metric>",
		Short: "Compare the current window with the one before it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, asOf, err := metricArgs(opts, args[0], days)
			if err != nil {
				return err
			}
			p, err := buildPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.engine.Authorize(cmd.Context()); err != nil {
				return err
			}
			comparison, err := p.engine.Compare(cmd.Context(), kind, days, asOf)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), comparison)
		},
	}
	addDaysFlag(cmd, &days)
	return cmd
}

type insightsOutput struct {
	WindowDays int               `json:"window_days" yaml:"window_days"`
	Score      float64           `json:"score" yaml:"score"`
	Insights   []insight.Insight `json:"insights" yaml:"insights"`
}

func newInsightsCmd(opts *globalOptions) *cobra.Command {
	var (
		days  int
		focus string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Ranked insights across all metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validDays(days); err != nil {
				return err
			}
			var focusKind metric.Kind
			if focus != "" {
				kind, ok := metric.Parse(focus)
				if !ok {
					return fmt.Errorf("unknown metric %q", focus)
				}
				focusKind = kind
			}
			asOf, err := opts.anchor()
			if err != nil {
				return err
			}
			p, err := buildPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.engine.Authorize(cmd.Context()); err != nil {
				return err
			}
			aggregates, err := p.engine.Overview(cmd.Context(), metric.All(), days, asOf)
			if err != nil {
				return err
			}
			insights := p.generator.Generate(aggregates, insight.Options{
				Lang:  metric.NormalizeLang(opts.lang),
				Focus: focusKind,
				Goals: assistant.DefaultGoals,
			})
			if limit > 0 {
				insights = insight.Top(insights, limit)
			}
			return opts.print(cmd.OutOrStdout(), insightsOutput{
				WindowDays: days,
				Score:      insight.OverallScore(aggregates),
				Insights:   insights,
			})
		},
	}
	addDaysFlag(cmd, &days)
	cmd.Flags().StringVar(&focus, "focus", "", "Restrict insights to one metric")
	cmd.Flags().IntVar(&limit, "limit", insight.InlineLimit, "Maximum insights to print (0 for all)")
	return cmd
}

func metricArgs(opts *globalOptions, raw string, days int) (metric.Kind, time.Time, error) {
	kind, ok := metric.Parse(raw)
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown metric %q", raw)
	}
	if err := validDays(days); err != nil {
		return "", time.Time{}, err
	}
	asOf, err := opts.anchor()
	if err != nil {
		return "", time.Time{}, err
	}
	return kind, asOf, nil
}
