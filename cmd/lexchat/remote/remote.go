package remotecmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/server"
)

const remoteLongDesc string = `Ask questions through a running lexchatd server.

Opens a session on the server and sends each question as a turn in
that session, so later questions share the server-side transcript.
Answers are streamed as they arrive. The session is deleted on exit
unless --keep is set.

Examples:
  lexchat remote http://localhost:8080 "É crime dirigir sem habilitação?"
  lexchat remote http://localhost:8080 "Pergunta um" "Pergunta dois"`

const remoteShortDesc string = "Ask questions through a lexchatd server"

type remoteCommander struct {
	keep   bool
	client *http.Client
}

func NewRemoteCmd() *cobra.Command {
	cmder := &remoteCommander{client: http.DefaultClient}

	cmd := &cobra.Command{
		Use:   "remote <server-url> <question>...",
		Short: remoteShortDesc,
		Long:  remoteLongDesc,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0], args[1:])
		},
	}

	cmd.Flags().BoolVar(&cmder.keep, "keep", false, "Keep the server session after exiting")

	return cmd
}

func (c *remoteCommander) run(ctx context.Context, cmd *cobra.Command, serverURL string, questions []string) error {
	serverURL = strings.TrimRight(serverURL, "/")
	w := cmd.OutOrStdout()
	out := termenv.NewOutput(w)

	sess, err := c.createSession(ctx, serverURL)
	if err != nil {
		return err
	}
	if c.keep {
		fmt.Fprintf(w, "Session %s\n", sess.ID)
	} else {
		defer c.deleteSession(context.WithoutCancel(ctx), serverURL, sess.ID)
	}

	for _, q := range questions {
		fmt.Fprintln(w, out.String("Você:").Bold().Foreground(out.Color("39")), q)
		fmt.Fprintln(w, out.String("Assistente:").Bold().Foreground(out.Color("170")))

		if err := c.postTurn(ctx, serverURL, sess.ID, q, w); err != nil {
			fmt.Fprintln(w, out.String(chat.FallbackReply).Foreground(out.Color("203")))
			return err
		}
		fmt.Fprintln(w)
	}

	return nil
}

func (c *remoteCommander) createSession(ctx context.Context, serverURL string) (*server.SessionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, statusError(resp)
	}

	var sess server.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}
	return &sess, nil
}

func (c *remoteCommander) deleteSession(ctx context.Context, serverURL, id string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, serverURL+"/api/sessions/"+id, nil)
	if err != nil {
		return
	}
	if resp, err := c.client.Do(req); err == nil {
		resp.Body.Close()
	}
}

func (c *remoteCommander) postTurn(ctx context.Context, serverURL, id, question string, w io.Writer) error {
	body, err := json.Marshal(server.TurnRequest{Content: question})
	if err != nil {
		return fmt.Errorf("could not marshal turn: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/sessions/"+id+"/turns", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line server.StreamLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return fmt.Errorf("could not decode stream line: %w", err)
		}
		switch {
		case line.Error != "":
			fmt.Fprintln(w)
			return fmt.Errorf("reply failed (%s): %s", line.Kind, line.Error)
		case line.Done:
			return nil
		default:
			fmt.Fprint(w, line.Fragment)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not read stream: %w", err)
	}
	return fmt.Errorf("stream ended without a final line")
}

func statusError(resp *http.Response) error {
	var body server.ErrorResponse
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		if body.Detail != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Detail)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(raw))
}
