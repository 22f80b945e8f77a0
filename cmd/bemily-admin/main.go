// ABOUTME: Admin CLI for inspecting and exercising the bemily chat data layer
// ABOUTME: Opens the document store directly; no server required

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/bemily/database/internal/chat"
	"github.com/bemily/database/internal/config"
	"github.com/bemily/database/internal/docstore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stderr)
	store, err := docstore.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	svc := chat.New(store, logger)
	ctx := context.Background()
	args := os.Args[2:]

	switch cmd {
	case "conversations":
		err = cmdConversations(ctx, svc, args)
	case "conversation":
		err = cmdConversation(ctx, svc, args)
	case "create":
		err = cmdCreate(ctx, svc, args)
	case "delete":
		err = cmdDelete(ctx, svc, args)
	case "messages":
		err = cmdMessages(ctx, svc, args)
	case "send":
		err = cmdSend(ctx, svc, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		var conflict *chat.ConflictError
		if errors.As(err, &conflict) {
			color.Yellow("Conflict: conversation %s already active between %s and %s\n",
				conflict.Conversation.ID, conflict.Conversation.UserID, conflict.Conversation.UserID2)
			os.Exit(2)
		}
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Println("bemily-admin - chat data layer inspection")
	fmt.Println()
	fmt.Println("Usage: bemily-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  conversations <user-id>                 List conversations for a user")
	fmt.Println("  conversation <id>                       Show one conversation")
	fmt.Println("  create <user-id> <user-id2> [subject]   Create a conversation")
	fmt.Println("  delete <id>                             Soft-delete a conversation")
	fmt.Println("  messages <id> [--page N] [--size M]     List messages (sorted; paged with flags)")
	fmt.Println("  send <id> <sender> <body...>            Append a message")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  BEMILY_CONFIG    Config file path (default: ~/.config/bemily/bemily.yaml)")
	fmt.Println("  BEMILY_DB        Database file path (overrides config)")
	fmt.Println()
}

// loadConfig resolves configuration the same way the host does:
// BEMILY_DB wins, then BEMILY_CONFIG, then the default config path if it
// exists, then built-in defaults.
func loadConfig() (*config.Config, error) {
	if dbPath := os.Getenv("BEMILY_DB"); dbPath != "" {
		cfg := config.Default()
		cfg.Database.Path = dbPath
		return cfg, nil
	}

	path := os.Getenv("BEMILY_CONFIG")
	if path == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return config.Default(), nil
			}
			configDir = filepath.Join(homeDir, ".config")
		}
		path = filepath.Join(configDir, "bemily", "bemily.yaml")
		if _, err := os.Stat(path); err != nil {
			return config.Default(), nil
		}
	}

	return config.Load(path)
}

func cmdConversations(ctx context.Context, svc *chat.Service, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bemily-admin conversations <user-id>")
	}

	convs, err := svc.ListConversationsForUser(ctx, args[0])
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tUSER2\tDELETED\tSUBJECT")
	for _, c := range convs {
		subject, _ := c.Fields["subject"].(string)
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", c.ID, c.UserID, c.UserID2, c.Deleted, subject)
	}
	return w.Flush()
}

func cmdConversation(ctx context.Context, svc *chat.Service, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bemily-admin conversation <id>")
	}

	conv, err := svc.GetConversationByID(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", conv.ID)
	fmt.Printf("Users:    %s, %s\n", conv.UserID, conv.UserID2)
	fmt.Printf("Deleted:  %v\n", conv.Deleted)
	for k, v := range conv.Fields {
		fmt.Printf("%-9s %v\n", k+":", v)
	}
	return nil
}

func cmdCreate(ctx context.Context, svc *chat.Service, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: bemily-admin create <user-id> <user-id2> [subject]")
	}

	conv := &chat.Conversation{UserID: args[0], UserID2: args[1]}
	if len(args) > 2 {
		conv.Fields = map[string]any{"subject": strings.Join(args[2:], " ")}
	}

	created, err := svc.CreateConversation(ctx, conv)
	if err != nil {
		return err
	}
	color.Green("Created conversation %s\n", created.ID)
	return nil
}

func cmdDelete(ctx context.Context, svc *chat.Service, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bemily-admin delete <id>")
	}

	if _, err := svc.UpdateConversation(ctx, args[0], map[string]any{"delete": true}); err != nil {
		return err
	}
	color.Green("Soft-deleted conversation %s\n", args[0])
	return nil
}

func cmdMessages(ctx context.Context, svc *chat.Service, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bemily-admin messages <conversation-id> [--page N] [--size M]")
	}
	conversationID := args[0]

	page, size := -1, 20
	paged := false
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--page":
			i++
			if i >= len(args) {
				return fmt.Errorf("--page requires a value")
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("invalid page %q: %w", args[i], err)
			}
			page = n
			paged = true
		case "--size":
			i++
			if i >= len(args) {
				return fmt.Errorf("--size requires a value")
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[i], err)
			}
			size = n
			paged = true
		default:
			return fmt.Errorf("unknown flag %q", args[i])
		}
	}

	var msgs []*chat.Message
	var err error
	if paged {
		if page < 0 {
			page = 0
		}
		msgs, err = svc.GetPagedMessages(ctx, conversationID, page, size)
	} else {
		msgs, err = svc.GetAllMessages(ctx, conversationID)
	}
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tSENDER\tBODY")
	for _, m := range msgs {
		sender, _ := m.Fields["sender"].(string)
		body, _ := m.Fields["body"].(string)
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Timestamp, sender, body)
	}
	return w.Flush()
}

func cmdSend(ctx context.Context, svc *chat.Service, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: bemily-admin send <conversation-id> <sender> <body...>")
	}

	msg := &chat.Message{
		ConversationID: args[0],
		Timestamp:      time.Now().UnixMilli(),
		Fields: map[string]any{
			"sender": args[1],
			"body":   strings.Join(args[2:], " "),
		},
	}

	saved, err := svc.SaveMessage(ctx, msg)
	if err != nil {
		return err
	}
	color.Green("Saved message %s\n", saved.ID)
	return nil
}
