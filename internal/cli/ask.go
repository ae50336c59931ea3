// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatbot-tui/internal/ui/styles"
	"github.com/jeranaias/chatbot-tui/internal/util"
)

// maxStdinBytes bounds a question read from a pipe.
const maxStdinBytes = 1 << 20

type askOptions struct {
	images []string
	plain  bool
}

func newAskCommand(a *app) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send one message and print the reply",
		Long: `Send one message, print the reply and exit.

The question is taken from the arguments, or from standard input when no
arguments are given and input is piped. Replies are rendered as markdown
on a terminal and printed as-is otherwise.`,
		Example: `  chatbot ask "What is a goroutine?"
  chatbot ask --image diagram.png "Explain this diagram"
  git diff | chatbot ask --plain`,
		Annotations: map[string]string{annotationQuietLog: quietByDefault},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.images, "image", "i", nil, "attach an image (repeatable)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print the reply without styling")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, args []string, opts *askOptions) error {
	question := strings.Join(args, " ")
	if question == "" && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinBytes))
		if err != nil {
			return errors.Wrap(err, "read question from stdin")
		}
		question = string(data)
	}
	if strings.TrimSpace(question) == "" && len(opts.images) == 0 {
		return errors.New("nothing to ask: pass a question, pipe one on stdin, or attach an image")
	}

	tokens, _ := a.tokens()
	ctl, err := a.newController(tokens)
	if err != nil {
		return err
	}
	defer ctl.Close()

	for _, path := range opts.images {
		if _, err := ctl.AttachFile(util.ExpandHome(path)); err != nil {
			return errors.Wrapf(err, "attach %s", path)
		}
	}
	if err := ctl.SetDraft(question); err != nil {
		return err
	}

	res, err := ctl.Send(cmd.Context())
	if err != nil {
		return err
	}

	if res.Outcome.Failed() {
		log.Debug().Err(res.Cause).Str("outcome", res.Outcome.String()).Msg("ask failed")
		fmt.Fprintln(cmd.ErrOrStderr(), styles.RenderError(res.Message.Content.PlainText()))
		return &ExitError{Code: 1}
	}

	out := cmd.OutOrStdout()
	if opts.plain || !ColorsEnabled(out) {
		fmt.Fprintln(out, res.Message.Content.PlainText())
		return nil
	}
	fmt.Fprintln(out, a.renderer(false).Message(res.Message, TerminalWidth(out)))
	return nil
}
