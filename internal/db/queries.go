package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/fsechat/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// maxChainLength stops QueryChain from walking forever over a corrupted store.
const maxChainLength = 100000

// ExistingDocumentIndices returns the subset of indices that have a stored document.
func (c *Client) ExistingDocumentIndices(ctx context.Context, indices []int) ([]int, error) {
	if len(indices) == 0 {
		return []int{}, nil
	}

	results, err := surrealdb.Query[[]int](ctx, c.db, `
		SELECT VALUE index FROM document WHERE index IN $indices ORDER BY index
	`, map[string]any{"indices": indices})
	if err != nil {
		return nil, fmt.Errorf("existing document indices: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []int{}, nil
	}
	return (*results)[0].Result, nil
}

// MaxDocumentIndex returns the highest stored document index, or -1 when no
// documents are loaded.
func (c *Client) MaxDocumentIndex(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]int](ctx, c.db, `
		SELECT VALUE index FROM document ORDER BY index DESC LIMIT 1
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("max document index: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return -1, nil
	}
	return (*results)[0].Result[0], nil
}

// GetMessage retrieves a message by id.
// Returns nil if not found.
func (c *Client) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		SELECT * FROM type::record("message", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get message: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// GetConversation retrieves a conversation by id.
// Returns nil if not found.
func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		SELECT * FROM type::record("conversation", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// GetSession retrieves a session by id.
// Returns nil if not found.
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	results, err := surrealdb.Query[[]models.Session](ctx, c.db, `
		SELECT * FROM type::record("session", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListConversations returns the conversations of a session, oldest first.
func (c *Client) ListConversations(ctx context.Context, sessionID string) ([]models.Conversation, error) {
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		SELECT * FROM conversation
		WHERE id IN (SELECT VALUE out FROM has_conversation WHERE in = type::record("session", $session))
		ORDER BY created_at ASC
	`, map[string]any{"session": sessionID})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Conversation{}, nil
	}
	return (*results)[0].Result, nil
}

// chainLinks holds the next-edge neighbours of one message.
type chainLinks struct {
	Successors   []surrealmodels.RecordID `json:"successors"`
	Predecessors []surrealmodels.RecordID `json:"predecessors"`
}

// QueryChain walks a conversation from its head along next edges and returns
// the messages in order. It fails with ErrChainCorrupt when the chain is not
// a simple path and with ErrNotFound when the conversation has no head.
func (c *Client) QueryChain(ctx context.Context, conversationID string) ([]models.Message, error) {
	heads, err := surrealdb.Query[[]surrealmodels.RecordID](ctx, c.db, `
		SELECT VALUE out FROM first WHERE in = type::record("conversation", $conversation)
	`, map[string]any{"conversation": conversationID})
	if err != nil {
		return nil, fmt.Errorf("query chain head: %w", wrapQueryError(err))
	}
	if heads == nil || len(*heads) == 0 || len((*heads)[0].Result) == 0 {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if n := len((*heads)[0].Result); n > 1 {
		return nil, fmt.Errorf("conversation %s has %d heads: %w", conversationID, n, ErrChainCorrupt)
	}

	var (
		chain   []models.Message
		visited = map[string]bool{}
		current = (*heads)[0].Result[0]
		prevKey string
	)
	for {
		key := current.String()
		if visited[key] {
			return nil, fmt.Errorf("cycle at %s: %w", key, ErrChainCorrupt)
		}
		if len(chain) >= maxChainLength {
			return nil, fmt.Errorf("chain longer than %d: %w", maxChainLength, ErrChainCorrupt)
		}
		visited[key] = true

		msg, links, err := c.chainNode(ctx, current)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, fmt.Errorf("dangling link to %s: %w", key, ErrChainCorrupt)
		}

		switch {
		case prevKey == "" && len(links.Predecessors) != 0:
			return nil, fmt.Errorf("head %s has a predecessor: %w", key, ErrChainCorrupt)
		case prevKey != "" && (len(links.Predecessors) != 1 || links.Predecessors[0].String() != prevKey):
			return nil, fmt.Errorf("%s has %d predecessors: %w", key, len(links.Predecessors), ErrChainCorrupt)
		case len(links.Successors) > 1:
			return nil, fmt.Errorf("%s has %d successors: %w", key, len(links.Successors), ErrChainCorrupt)
		}

		chain = append(chain, *msg)
		if len(links.Successors) == 0 {
			return chain, nil
		}
		prevKey = key
		current = links.Successors[0]
	}
}

func (c *Client) chainNode(ctx context.Context, id surrealmodels.RecordID) (*models.Message, *chainLinks, error) {
	vars := map[string]any{"message": id}

	msgs, err := surrealdb.Query[[]models.Message](ctx, c.db, `SELECT * FROM $message`, vars)
	if err != nil {
		return nil, nil, fmt.Errorf("query chain node: %w", wrapQueryError(err))
	}
	if msgs == nil || len(*msgs) == 0 || len((*msgs)[0].Result) == 0 {
		return nil, nil, nil
	}

	links, err := surrealdb.Query[[]chainLinks](ctx, c.db, `
		SELECT
			(SELECT VALUE out FROM next WHERE in = $parent.id) AS successors,
			(SELECT VALUE in FROM next WHERE out = $parent.id) AS predecessors
		FROM $message
	`, vars)
	if err != nil {
		return nil, nil, fmt.Errorf("query chain links: %w", wrapQueryError(err))
	}
	if links == nil || len(*links) == 0 || len((*links)[0].Result) == 0 {
		return &(*msgs)[0].Result[0], &chainLinks{}, nil
	}
	return &(*msgs)[0].Result[0], &(*links)[0].Result[0], nil
}

// ContextDocuments returns the documents linked to a message, ordered by index.
func (c *Client) ContextDocuments(ctx context.Context, messageID string) ([]models.Document, error) {
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		SELECT id, index, title, content, source, section FROM document
		WHERE id IN (SELECT VALUE out FROM has_context WHERE in = type::record("message", $message))
		ORDER BY index ASC
	`, map[string]any{"message": messageID})
	if err != nil {
		return nil, fmt.Errorf("context documents: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Document{}, nil
	}
	return (*results)[0].Result, nil
}

// SearchDocuments returns the documents nearest to embedding, closest first.
func (c *Client) SearchDocuments(ctx context.Context, embedding []float32, limit int) ([]models.Document, error) {
	if limit <= 0 {
		return []models.Document{}, nil
	}

	// KNN size must be a literal; HNSW with ef=40.
	sql := fmt.Sprintf(`
		SELECT id, index, title, content, source, section, vector::distance::knn() AS distance
		FROM document
		WHERE embedding <|%d,40|> $emb
		ORDER BY distance ASC
	`, limit)

	results, err := surrealdb.Query[[]models.Document](ctx, c.db, sql, map[string]any{"emb": embedding})
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Document{}, nil
	}
	return (*results)[0].Result, nil
}
