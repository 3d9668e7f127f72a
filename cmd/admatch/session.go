package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"admatch/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "会话快照工具（合并/查看）",
	}
	cmd.AddCommand(newSessionMergeCmd(), newSessionShowCmd())
	return cmd
}

func newSessionMergeCmd() *cobra.Command {
	var (
		out  string
		flat bool
	)
	cmd := &cobra.Command{
		Use:   "merge <file>...",
		Short: "按顺序合并会话 JSON/快照包，输出合并后的会话 JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSessions(args)
			if err != nil {
				return &exitError{code: exitRun, err: err}
			}
			var b []byte
			if flat {
				b, err = st.ExportFlat()
			} else {
				b, err = st.Export()
			}
			if err != nil {
				return &exitError{code: exitRun, err: err}
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(b, '\n'))
			} else {
				err = os.WriteFile(out, b, 0o644)
			}
			if err != nil {
				return &exitError{code: exitRun, err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "输出路径（- 表示 stdout）")
	cmd.Flags().BoolVar(&flat, "flat", false, "输出 {code: notes} 轻量格式")
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>...",
		Short: "以表格列出会话中的备注与覆盖字段",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSessions(args)
			if err != nil {
				return &exitError{code: exitRun, err: err}
			}
			return showSession(cmd.OutOrStdout(), st)
		},
	}
}

// loadSessions 依次导入；任一失败即返回（带文件名）。
func loadSessions(paths []string) (*session.State, error) {
	st := session.NewState()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if _, err := st.ImportAny(data); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return st, nil
}

func showSession(w io.Writer, st *session.State) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fprintf(tw, "CODE\tNOTES\tOVERRIDES\n")
	snap := st.Snapshot()
	for _, code := range st.Codes() {
		e := snap[code]
		fields := make([]string, 0, len(e.Override))
		for k, v := range e.Override {
			fields = append(fields, k+"="+v)
		}
		sort.Strings(fields)
		fprintf(tw, "%s\t%s\t%s\n", code, oneLine(e.Notes), strings.Join(fields, "; "))
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
