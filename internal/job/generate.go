package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/postprocess"
	"github.com/valpere/batchtran/internal/retry"
	"github.com/valpere/batchtran/internal/schema"
	"github.com/valpere/batchtran/internal/stats"
)

// maxGenerateRetries is the number of consecutive unusable replies tolerated
// before the chat history is considered poisoned and reset.
const maxGenerateRetries = 10

// generateState lives for one batch dispatch.
type generateState struct {
	retryCount int
	maxRetries int
}

// fail records an unusable reply and undoes its exchange. Past maxRetries the
// whole history is dropped instead.
func (s *generateState) fail(sess chat.Session, cause error) error {
	s.retryCount++
	if s.retryCount > s.maxRetries {
		sess.ResetChatHistory()
		return fmt.Errorf("%w: %w", errHistoryReset, cause)
	}
	sess.RollbackLastMessage()
	if errors.Is(cause, schema.ErrMalformed) && s.retryCount > s.maxRetries/2 {
		sess.InvalidTranslation()
	}
	return cause
}

// generate sends prompt until the reply parses as the requested structure and
// returns its structurally valid items. An empty or malformed reply is rolled
// back and retried; after maxGenerateRetries failures the history is reset
// and one further attempt is made before giving up with ErrGenerationFailed.
func (r *runner) generate(ctx context.Context, sess chat.Session, st *stats.Phase, prompt string, format *schema.Schema) ([]gjson.Result, error) {
	state := &generateState{maxRetries: maxGenerateRetries}

	op := func(ctx context.Context) ([]gjson.Result, error) {
		reply := sess.SendMessage(ctx, prompt, st, format)
		if reply == "" {
			return nil, state.fail(sess, errEmptyReply)
		}
		items, dropped, err := parseReply(reply, format)
		if err != nil {
			return nil, state.fail(sess, err)
		}
		if dropped > 0 {
			r.log.Debug().Int("dropped", dropped).Msg("reply items did not match the schema")
		}
		state.retryCount = 0
		return items, nil
	}

	items, err := retry.Do(ctx, r.log, op, state.maxRetries+1, r.retryDelay, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return items, nil
}

// parseReply reads reply as-is when it is valid JSON. Only replies that are
// not are cleaned of reasoning blocks and code fences first, since those
// markers may legitimately appear inside translated strings.
func parseReply(reply string, format *schema.Schema) ([]gjson.Result, int, error) {
	if gjson.Valid(reply) {
		return schema.Items(reply, format)
	}
	return schema.Items(postprocess.ExtractJSON(reply), format)
}
