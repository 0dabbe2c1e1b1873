package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/npezzotti/go-carehome/internal/api"
	"github.com/npezzotti/go-carehome/internal/backend"
	"github.com/npezzotti/go-carehome/internal/digest"
	"github.com/npezzotti/go-carehome/internal/messaging"
	"github.com/npezzotti/go-carehome/internal/quicklog"
	"github.com/npezzotti/go-carehome/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const photoBucket = "photos"

func init() {
	rootCmd.AddCommand(seedCmd, resetCmd, residentsCmd, feedCmd, logCmd, statsCmd, messagesCmd, serveCmd)

	feedCmd.Flags().String("react", "", "toggle a heart on this feed item id")

	logCmd.Flags().String("note", "", "general note added to the first entry")
	logCmd.Flags().StringToString("action-note", nil, "per-action notes, e.g. meal=ate slowly")
	logCmd.Flags().StringToString("metric", nil, "vital signs, e.g. bp=120/80,pulse=72")
	logCmd.Flags().String("photo", "", "photo file to attach")

	messagesCmd.Flags().String("send", "", "send this message to the conversation")

	serveCmd.Flags().String("addr", "", "listen address (defaults to metrics_addr from config)")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the current state, seeding anything missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt.app.Persist.SaveAll()
		if err := rt.app.Persist.Flush(cmd.Context()); err != nil {
			return err
		}
		for _, k := range rt.app.Persist.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete saved state and restore the seeded dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rt.app.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "state reset")
		return nil
	},
}

var residentsCmd = &cobra.Command{
	Use:   "residents",
	Short: "List residents visible to the current user with today's progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tROOM\tCONSENT\tTASKS\tUPDATES")
		for _, r := range rt.app.VisibleResidents() {
			p, _ := rt.app.Summary.ResidentProgress(r.Id)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d/%d (%d%%)\t%d\n",
				r.Id, r.Name, r.Room, r.PhotoConsent, p.Completed, p.Total, p.Percent, p.Updates)
		}
		return tw.Flush()
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed <resident-id>",
	Short: "Show a resident's feed, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, ok := rt.app.Feed.Resident(args[0])
		if !ok {
			return fmt.Errorf("unknown resident %q", args[0])
		}
		if react, _ := cmd.Flags().GetString("react"); react != "" {
			rt.app.Feed.ToggleReaction(react)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (room %s)\n", r.Name, r.Room)
		for _, it := range rt.app.Feed.FeedItemsByResident(r.Id) {
			fmt.Fprintf(out, "  %s  %-8s %-24s ♥%d  %s\n",
				it.CreatedAt.Local().Format("Jan 2 15:04"), it.Type, strings.Join(it.Tags, ","), it.Reactions.Heart, it.Id)
			if it.Text != "" {
				fmt.Fprintf(out, "      %s\n", strings.ReplaceAll(it.Text, "\n", "\n      "))
			}
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log <resident-id> <action[:variant]>...",
	Short: "Log care for a resident",
	Long: `Log one or more quick actions for a resident. A bare action is tapped
once, picking its default variant; action:variant selects that variant.
Repeat an action to tap it again, e.g. "meal meal" logs "most".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := rt.app.NewSession(args[0])
		if err != nil {
			return err
		}
		if err := applySelections(s, args[1:]); err != nil {
			return err
		}

		notes, _ := cmd.Flags().GetStringToString("action-note")
		for actionId, note := range notes {
			if err := s.SetNote(actionId, note); err != nil {
				return err
			}
		}
		if metrics, _ := cmd.Flags().GetStringToString("metric"); len(metrics) > 0 {
			if err := s.SetMetrics("vitals", metrics); err != nil {
				return err
			}
		}
		if note, _ := cmd.Flags().GetString("note"); note != "" {
			s.SetGeneralNote(note)
		}
		if path, _ := cmd.Flags().GetString("photo"); path != "" {
			url, err := uploadPhoto(cmd.Context(), rt.app.Backend, args[0], path)
			if err != nil {
				return err
			}
			if err := s.AddPhoto(url); err != nil {
				return err
			}
		}

		items, err := s.Submit()
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "logged %s %s [%s]\n", it.Id, it.Type, strings.Join(it.Tags, ","))
		}
		return nil
	},
}

// applySelections replays command-line taps against a session.
func applySelections(s *quicklog.Session, args []string) error {
	for _, arg := range args {
		actionId, variantId, hasVariant := strings.Cut(arg, ":")
		if !hasVariant {
			if err := s.Tap(actionId); err != nil {
				return err
			}
			continue
		}
		if err := s.ToggleVariant(actionId, variantId); err != nil {
			return err
		}
	}
	return nil
}

func uploadPhoto(ctx context.Context, be backend.Backend, residentId, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	key := fmt.Sprintf("%s/%d%s", residentId, time.Now().UnixMilli(), filepath.Ext(path))
	if err := be.Upload(ctx, photoBucket, key, data); err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return be.PublicURL(photoBucket, key), nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print today's facility summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(digest.Build(rt.app.Summary.Facility())); err != nil {
			return err
		}
		return enc.Close()
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages [conversation-id]",
	Short: "List conversations, or read and reply to one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, ok := rt.app.Directory.CurrentUser()
		if !ok {
			return fmt.Errorf("no current user")
		}
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tUNREAD\tLAST")
			for _, c := range rt.app.Messages.ConversationsForUser(u.Id) {
				last := ""
				if c.LastMessage != nil {
					last = c.LastMessage.Content
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Id, c.Title, c.UnreadCount, last)
			}
			return tw.Flush()
		}

		text, _ := cmd.Flags().GetString("send")
		return openConversation(out, rt.app.Messages, u, args[0], text)
	},
}

// openConversation prints a conversation the user takes part in, first
// sending text when it is not empty, and marks it read. Non-participants
// are rejected before anything is written.
func openConversation(out io.Writer, ms *messaging.Store, u types.User, convId, text string) error {
	if _, err := ms.Messages(u.Id, convId); err != nil {
		return err
	}
	if text != "" {
		if _, ok := ms.SendMessage(text, convId, u.Id, u.DisplayName, u.Role, ""); !ok {
			return fmt.Errorf("message not sent")
		}
	}

	msgs, err := ms.Messages(u.Id, convId)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Fprintf(out, "%s  %s: %s\n", m.Timestamp.Local().Format("Jan 2 15:04"), m.SenderName, m.Content)
	}
	ms.MarkConversationAsRead(convId)
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve metrics and the summary API and send the daily digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = rt.cfg.MetricsAddr
		}
		if addr == "" {
			addr = "localhost:9090"
		}
		logger := rt.log

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sub := rt.app.Backend.Subscribe(digest.Channel, func(ev backend.Event) {
			logger.Info("digest_delivered", zap.String("channel", ev.Channel))
		})
		defer rt.app.Backend.Unsubscribe(sub)

		if rt.cfg.DigestCron != "" {
			sched, err := digest.NewScheduler(logger.Named("digest"), rt.app.Summary, rt.app.Backend, rt.cfg.DigestCron)
			if err != nil {
				return err
			}
			go sched.Run(ctx)
		}

		srv := api.NewServer(logger.Named("api"), rt.mux, rt.app, addr, os.Stdout)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigs:
			logger.Info("received_signal", zap.String("signal", sig.String()))
		case err := <-errCh:
			logger.Error("server_failed", zap.Error(err))
		}
		cancel()

		shutDownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		return srv.Shutdown(shutDownCtx)
	},
}
