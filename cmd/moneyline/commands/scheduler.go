package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KevinGoltermann/moneyline-sub000/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/moneyline scheduler start
  go run ./cmd/moneyline scheduler list
  go run ./cmd/moneyline scheduler run daily_pick`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- daily_pick: 매일 오전 9시 (DAILY_PICK_SCHEDULE, 운영 타임존 기준)
- performance_refresh: 15분마다 (성적 집계 갱신)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd, schedulerListCmd, schedulerRunCmd, schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Moneyline Scheduler ===")

	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	// next-run times are only computed by a running cron
	sched.Start()
	defer sched.Stop()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	result, err := sched.RunNow(context.Background(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		fmt.Printf("❌ %s failed after %d attempt(s) in %v\n", jobName, result.Attempts, result.Duration)
		return fmt.Errorf("%s", result.Error)
	}
	fmt.Printf("✅ %s completed in %v (%d attempt(s))\n", jobName, result.Duration, result.Attempts)
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	stats := sched.GetJobStats()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSCHEDULE\tRUNS\tOK\tFAILED\tLAST RUN\tLAST ERROR")
	for _, name := range sched.GetAllJobs() {
		st := stats[name]
		last := "-"
		if st.LastRun != nil {
			last = st.LastRun.In(a.cfg.Location()).Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			name, st.Schedule, st.TotalRuns, st.SuccessCount, st.FailureCount, last, st.LastError)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Println()

	// today's pick is the state that matters across restarts
	eng := a.engine
	today := eng.Today()
	exists, err := eng.Store().PickExists(context.Background(), today)
	if err != nil {
		return fmt.Errorf("check today's pick: %w", err)
	}
	fmt.Printf("Today (%s, %s): pick exists = %v\n", today, eng.Location(), exists)

	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		if next, ok := sched.NextRun(jobName); ok && !next.IsZero() {
			fmt.Printf("  - %s (next: %s)\n", jobName, next.Format("2006-01-02 15:04:05 MST"))
			continue
		}
		fmt.Printf("  - %s\n", jobName)
	}
}

func initScheduler() (*app, *scheduler.Scheduler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}

	sched, err := a.newScheduler()
	if err != nil {
		a.close()
		return nil, nil, err
	}
	return a, sched, nil
}
