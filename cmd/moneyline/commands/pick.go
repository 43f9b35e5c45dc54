package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/engine"
)

// pickCmd groups the operator actions that run in-process
var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "픽 생성/재계산/정산",
	Long: `API 서버를 거치지 않고 엔진을 직접 호출합니다.

Subcommands:
  generate   - 픽 생성 (이미 있으면 그대로 유지)
  recompute  - 기존 픽 삭제 후 재생성
  settle     - 픽 결과 정산 (win|loss|push)
  unsettled  - 미정산 픽 목록
  show       - 픽 상세

Example:
  go run ./cmd/moneyline pick generate
  go run ./cmd/moneyline pick recompute --date 2024-01-16
  go run ./cmd/moneyline pick settle 3f1c... win --notes "final 27-20"`,
}

var (
	pickDate  string
	pickNotes string

	pickGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "픽 생성",
		RunE:  runPickGenerate,
	}

	pickRecomputeCmd = &cobra.Command{
		Use:   "recompute",
		Short: "픽 재계산",
		RunE:  runPickRecompute,
	}

	pickSettleCmd = &cobra.Command{
		Use:   "settle [pick_id] [win|loss|push]",
		Short: "픽 정산",
		Args:  cobra.ExactArgs(2),
		RunE:  runPickSettle,
	}

	pickUnsettledCmd = &cobra.Command{
		Use:   "unsettled",
		Short: "미정산 픽 목록",
		RunE:  runPickUnsettled,
	}

	pickShowCmd = &cobra.Command{
		Use:   "show [pick_id]",
		Short: "픽 상세",
		Args:  cobra.ExactArgs(1),
		RunE:  runPickShow,
	}
)

func init() {
	rootCmd.AddCommand(pickCmd)
	pickCmd.AddCommand(pickGenerateCmd, pickRecomputeCmd, pickSettleCmd, pickUnsettledCmd, pickShowCmd)

	pickGenerateCmd.Flags().StringVar(&pickDate, "date", "", "대상 날짜 YYYY-MM-DD (기본값: 오늘)")
	pickRecomputeCmd.Flags().StringVar(&pickDate, "date", "", "대상 날짜 YYYY-MM-DD (기본값: 오늘)")
	pickSettleCmd.Flags().StringVar(&pickNotes, "notes", "", "정산 메모")
}

// withEngine wires the app for one command and tears it down afterwards
func withEngine(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := fn(ctx, a); err != nil {
		a.log.WithError(err).Error("Command failed")
		return err
	}
	return nil
}

// targetDate parses --date; empty means zero, which the engine reads as today
func targetDate() (contracts.Date, error) {
	if pickDate == "" {
		return contracts.Date{}, nil
	}
	return contracts.ParseDate(pickDate)
}

func runPickGenerate(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, a *app) error {
		date, err := targetDate()
		if err != nil {
			return err
		}
		if date.IsZero() {
			date = a.engine.Today()
		}

		res, err := a.engine.Generate(ctx, date)
		if err != nil {
			fmt.Printf("❌ Generate failed (%s)\n", engine.ErrorLabel(err))
			return err
		}

		fmt.Printf("✅ %s [%s, %v]\n", res.Message, res.Status, res.Duration.Round(time.Millisecond))
		if res.Pick != nil {
			printPick(res.Pick, nil)
		}
		return nil
	})
}

func runPickRecompute(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, a *app) error {
		date, err := targetDate()
		if err != nil {
			return err
		}

		res, err := a.engine.Recompute(ctx, date)
		if err != nil {
			fmt.Printf("❌ Recompute failed (%s)\n", engine.ErrorLabel(err))
			return err
		}

		fmt.Printf("✅ %s\n", res.Message)
		if res.Previous != nil {
			fmt.Printf("   Removed: %s %+d\n", res.Previous.Selection, res.Previous.Odds)
		}
		if res.Pick != nil {
			printPick(res.Pick, nil)
		}
		return nil
	})
}

func runPickSettle(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return contracts.Validation("pick.settle", "pick id must be a UUID")
	}

	var notes *string
	if n := strings.TrimSpace(pickNotes); n != "" {
		notes = &n
	}

	return withEngine(func(ctx context.Context, a *app) error {
		result, err := a.engine.Settle(ctx, id, contracts.Outcome(args[1]), notes)
		if err != nil {
			fmt.Printf("❌ Settle failed (%s)\n", contracts.KindOf(err))
			return err
		}
		fmt.Printf("✅ Pick %s settled as %s at %s\n", id, result.Outcome, result.SettledAt.Format("2006-01-02 15:04:05"))
		return nil
	})
}

func runPickUnsettled(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, a *app) error {
		picks, err := a.engine.Store().GetUnsettled(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Unsettled picks: %d\n\n", len(picks))
		for i := range picks {
			printPick(&picks[i], nil)
			fmt.Println()
		}
		return nil
	})
}

func runPickShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return contracts.Validation("pick.show", "pick id must be a UUID")
	}

	return withEngine(func(ctx context.Context, a *app) error {
		pick, result, err := a.engine.Store().GetPickByID(ctx, id)
		if err != nil {
			return err
		}
		printPick(pick, result)
		return nil
	})
}

func printPick(p *contracts.Pick, r *contracts.Result) {
	fmt.Printf("📌 %s  %s @ %s (%s)\n", p.PickDate, p.AwayTeam, p.HomeTeam, p.League)
	fmt.Printf("   ID: %s\n", p.ID)
	fmt.Printf("   %s: %s %+d  confidence %.1f\n", p.Market, p.Selection, p.Odds, p.Confidence)
	if len(p.Rationale.TopFactors) > 0 {
		fmt.Printf("   Factors: %s\n", strings.Join(p.Rationale.TopFactors, "; "))
	}
	if r != nil {
		fmt.Printf("   Result: %s (%s)\n", r.Outcome, r.SettledAt.Format("2006-01-02"))
	}
}
