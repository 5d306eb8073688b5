// Package tui is the chat controller: it wires line input and staged
// attachments to submissions, renders replies, and keeps the conversation
// store in sync.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"gemchat/internal/client"
	"gemchat/internal/models"
	"gemchat/internal/services"
	"gemchat/internal/store"
)

// fallbackReply is rendered in the model's voice when a submission fails. It
// is display-only and never enters the API history.
const fallbackReply = "Failed to get a response from the server. Please try again."

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	modelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type stagedFile struct {
	Path      string
	Name      string
	SizeBytes int64
	MediaType string
}

type Controller struct {
	store      *store.Store
	api        *client.Client
	line       *liner.State
	render     *Renderer
	out        io.Writer
	staged     []stagedFile
	submitting bool
}

func New(st *store.Store, api *client.Client) (*Controller, error) {
	render, err := NewRenderer(100)
	if err != nil {
		return nil, err
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	return &Controller{
		store:  st,
		api:    api,
		line:   line,
		render: render,
		out:    os.Stdout,
	}, nil
}

func (c *Controller) Close() {
	c.line.Close()
}

// Run is the interactive loop. It returns on /quit, Ctrl-C, or EOF.
func (c *Controller) Run(ctx context.Context) error {
	cur := c.store.Current()
	fmt.Fprintln(c.out, titleStyle.Render("gemchat"))
	fmt.Fprintln(c.out, subtleStyle.Render("Type a message, or /help for commands."))
	fmt.Fprintln(c.out)
	c.printConversation(cur)

	for {
		input, err := c.line.Prompt(c.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" && len(c.staged) == 0 {
			continue
		}
		c.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := c.runCommand(input); quit {
				return nil
			}
			continue
		}

		c.submit(ctx, input)
	}
}

func (c *Controller) prompt() string {
	cur := c.store.Current()
	p := cur.Title
	if len(c.staged) > 0 {
		p += fmt.Sprintf(" [%d file(s)]", len(c.staged))
	}
	return p + " > "
}

// submit runs one Idle -> Submitting -> Idle cycle. The indicator is removed
// and the submitting flag cleared on every exit path.
func (c *Controller) submit(ctx context.Context, text string) {
	if c.submitting {
		return
	}

	cur := c.store.Current()
	prior := cur.APIHistory
	staged := c.staged
	c.staged = nil

	// Optimistic append: the user turn is shown and persisted before the
	// network call resolves, and kept even if the call fails.
	userMsg := store.Message{Role: models.RoleUser, Text: text}
	for _, f := range staged {
		userMsg.Attachments = append(userMsg.Attachments, store.AttachmentRef{
			Name:      f.Name,
			SizeBytes: f.SizeBytes,
			MediaType: f.MediaType,
		})
	}
	if err := c.store.Append(cur.ID, userMsg); err != nil {
		fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
		return
	}

	c.submitting = true
	stop := startIndicator(c.out)

	var result string
	var err error
	func() {
		defer func() {
			stop()
			c.submitting = false
		}()

		if len(staged) > 0 {
			paths := make([]string, len(staged))
			for i, f := range staged {
				paths[i] = f.Path
			}
			result, _, err = c.api.ChatWithFiles(ctx, text, prior, paths)
		} else {
			conversation := append(append([]models.ChatTurn{}, prior...),
				models.ChatTurn{Role: models.RoleUser, Text: text})
			result, err = c.api.Chat(ctx, conversation)
		}
	}()

	if err != nil {
		c.store.Append(cur.ID, store.Message{Role: models.RoleModel, Text: fallbackReply, Local: true})
		fmt.Fprintln(c.out, modelStyle.Render("gemini: ")+errorStyle.Render(fallbackReply))
		fmt.Fprintln(c.out, subtleStyle.Render("  ("+err.Error()+")"))
		return
	}

	c.store.Append(cur.ID, store.Message{Role: models.RoleModel, Text: result})
	fmt.Fprintln(c.out, modelStyle.Render("gemini:"))
	fmt.Fprintln(c.out, c.render.Render(result))
}

// runCommand handles a slash command; it reports whether the loop should end.
func (c *Controller) runCommand(input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		c.printHelp()

	case "/new":
		conv := c.store.Create()
		fmt.Fprintln(c.out, subtleStyle.Render("Started "+conv.Title))

	case "/list":
		cur := c.store.Current()
		for i, conv := range c.store.List() {
			marker := "  "
			if conv.ID == cur.ID {
				marker = "* "
			}
			fmt.Fprintf(c.out, "%s%d. %s (%d messages, %s)\n",
				marker, i+1, conv.Title, len(conv.Messages), conv.UpdatedAt.Format("Jan 2 15:04"))
		}

	case "/select":
		conv, ok := c.pickConversation(args)
		if !ok {
			return false
		}
		msgs, err := c.store.Select(conv.ID)
		if err != nil {
			fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
			return false
		}
		fmt.Fprintln(c.out, subtleStyle.Render("Switched to "+conv.Title))
		for _, m := range msgs {
			c.printMessage(m)
		}

	case "/clear":
		cur := c.store.Current()
		if err := c.store.Clear(cur.ID); err != nil {
			fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
			return false
		}
		fmt.Fprintln(c.out, subtleStyle.Render("Conversation cleared"))

	case "/delete":
		conv := c.store.Current()
		if len(args) > 0 {
			picked, ok := c.pickConversation(args)
			if !ok {
				return false
			}
			conv = picked
		}
		if err := c.store.Delete(conv.ID); err != nil {
			fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
			return false
		}
		fmt.Fprintln(c.out, subtleStyle.Render("Deleted "+conv.Title))

	case "/attach":
		if len(args) == 0 {
			fmt.Fprintln(c.out, errorStyle.Render("Usage: /attach <path>"))
			return false
		}
		c.attach(strings.Join(args, " "))

	case "/detach":
		c.staged = nil
		fmt.Fprintln(c.out, subtleStyle.Render("Attachments cleared"))

	default:
		fmt.Fprintln(c.out, errorStyle.Render("Unknown command "+cmd+" (try /help)"))
	}

	return false
}

// attach stages a file for the next submission. Size and type are checked here
// for early feedback; the server validates again.
func (c *Controller) attach(path string) {
	if len(c.staged) >= services.MaxFilesPerRequest {
		fmt.Fprintf(c.out, "%s\n", errorStyle.Render(
			fmt.Sprintf("Maximum %d files per message", services.MaxFilesPerRequest)))
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintln(c.out, errorStyle.Render("Cannot read "+path))
		return
	}

	name := info.Name()
	mediaType := client.MediaTypeOf(path)
	if err := services.ValidateAttachment(name, info.Size(), mediaType); err != nil {
		fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
		return
	}

	c.staged = append(c.staged, stagedFile{
		Path:      path,
		Name:      name,
		SizeBytes: info.Size(),
		MediaType: mediaType,
	})
	fmt.Fprintf(c.out, "%s\n", subtleStyle.Render(
		fmt.Sprintf("Attached %s (%s)", name, formatSize(info.Size()))))
}

// pickConversation resolves a 1-based index from the /list ordering.
func (c *Controller) pickConversation(args []string) (*store.Conversation, bool) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, errorStyle.Render("Usage: /select <number from /list>"))
		return nil, false
	}
	n, err := strconv.Atoi(args[0])
	convs := c.store.List()
	if err != nil || n < 1 || n > len(convs) {
		fmt.Fprintln(c.out, errorStyle.Render("No such conversation"))
		return nil, false
	}
	return convs[n-1], true
}

func (c *Controller) printConversation(conv *store.Conversation) {
	for _, m := range conv.Messages {
		c.printMessage(m)
	}
}

func (c *Controller) printMessage(m store.Message) {
	switch m.Role {
	case models.RoleUser:
		fmt.Fprintln(c.out, userStyle.Render("you: ")+m.Text)
		for _, a := range m.Attachments {
			fmt.Fprintln(c.out, subtleStyle.Render(
				fmt.Sprintf("  📎 %s (%s)", a.Name, formatSize(a.SizeBytes))))
		}
	default:
		fmt.Fprintln(c.out, modelStyle.Render("gemini:"))
		if m.Local {
			fmt.Fprintln(c.out, errorStyle.Render(m.Text))
		} else {
			fmt.Fprintln(c.out, c.render.Render(m.Text))
		}
	}
}

func (c *Controller) printHelp() {
	help := [][2]string{
		{"/new", "start a new conversation"},
		{"/list", "list conversations, newest activity first"},
		{"/select <n>", "switch to a conversation from /list"},
		{"/clear", "empty the current conversation"},
		{"/delete [n]", "delete the current (or nth) conversation"},
		{"/attach <path>", "stage a file for the next message"},
		{"/detach", "drop staged files"},
		{"/quit", "exit"},
	}
	for _, h := range help {
		fmt.Fprintf(c.out, "  %-16s %s\n", h[0], subtleStyle.Render(h[1]))
	}
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%d B", bytes)
}
