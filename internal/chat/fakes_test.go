package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/models"
)

type storedMessage struct {
	params map[string]any
	role   models.Role
}

// memoryStore is a Writer that applies the write operations to an in-memory
// graph with the same guards as the real transactions.
type memoryStore struct {
	mu            sync.Mutex
	ops           []string
	calls         []map[string]any
	failOps       map[string]error
	sessions      map[string]bool
	conversations map[string]map[string]any
	sessionConvs  map[string][]string
	first         map[string]string // conversation -> head
	messages      map[string]storedMessage
	next          map[string]string // message -> successor
	prev          map[string]string // message -> predecessor
	documents     map[int]bool
	context       map[string]map[int]bool
}

func newMemoryStore(docs ...int) *memoryStore {
	s := &memoryStore{
		failOps:       map[string]error{},
		sessions:      map[string]bool{},
		conversations: map[string]map[string]any{},
		sessionConvs:  map[string][]string{},
		first:         map[string]string{},
		messages:      map[string]storedMessage{},
		next:          map[string]string{},
		prev:          map[string]string{},
		documents:     map[int]bool{},
		context:       map[string]map[int]bool{},
	}
	for _, d := range docs {
		s.documents[d] = true
	}
	return s
}

func (s *memoryStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOps[op] = err
}

func (s *memoryStore) Execute(_ context.Context, op string, params map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = append(s.ops, op)
	s.calls = append(s.calls, params)
	if err, ok := s.failOps[op]; ok {
		return err
	}

	switch op {
	case db.OpStartConversation:
		session := params["session_id"].(string)
		conv := params["conversation_id"].(string)
		msg := params["message_id"].(string)
		s.sessions[session] = true
		s.conversations[conv] = params
		s.sessionConvs[session] = append(s.sessionConvs[session], conv)
		s.messages[msg] = storedMessage{params: params, role: models.RoleUser}
		s.first[conv] = msg

	case db.OpAppendUserMessage, db.OpAppendAssistantMessage:
		prev := params["prev_id"].(string)
		msg := params["message_id"].(string)
		if _, ok := s.messages[prev]; !ok {
			return db.ErrChainBroken
		}
		if _, ok := s.next[prev]; ok {
			return db.ErrChainForked
		}
		role := models.RoleUser
		if op == db.OpAppendAssistantMessage {
			role = models.RoleAssistant
		}
		s.messages[msg] = storedMessage{params: params, role: role}
		s.next[prev] = msg
		s.prev[msg] = prev

	case db.OpAttachContext:
		msg := params["message_id"].(string)
		if _, ok := s.messages[msg]; !ok {
			return db.ErrNotFound
		}
		for _, idx := range params["indices"].([]int) {
			if !s.documents[idx] {
				continue
			}
			if s.context[msg] == nil {
				s.context[msg] = map[int]bool{}
			}
			s.context[msg][idx] = true
		}

	case db.OpRecordRating:
		msg := params["message_id"].(string)
		stored, ok := s.messages[msg]
		if !ok {
			return db.ErrNotFound
		}
		if stored.role != models.RoleAssistant {
			return db.ErrNotAssistantMessage
		}
		stored.params["rating"] = params["rating"]
		if exp, ok := params["explanation"]; ok {
			stored.params["rating_explanation"] = exp
		} else {
			delete(stored.params, "rating_explanation")
		}

	default:
		return fmt.Errorf("unexpected op")
	}
	return nil
}

func (s *memoryStore) ExistingDocumentIndices(_ context.Context, indices []int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, i := range indices {
		if s.documents[i] {
			out = append(out, i)
		}
	}
	return out, nil
}

// chain returns the contents of a conversation in chain order.
func (s *memoryStore) chain(conv string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id := s.first[conv]; id != ""; id = s.next[id] {
		out = append(out, s.messages[id].params["content"].(string))
	}
	return out
}

func (s *memoryStore) conversationsOf(session string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sessionConvs[session]...)
}

func (s *memoryStore) countOps(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.ops {
		if o == op {
			n++
		}
	}
	return n
}

// echoGenerator answers with a fixed prefix and remembers prompts.
type echoGenerator struct {
	backend    llm.Backend
	prompts    []string
	questions  []string
	remembered [][2]string
	err        error
}

func (g *echoGenerator) Remember(_ context.Context, question, answer string) error {
	g.remembered = append(g.remembered, [2]string{question, answer})
	return nil
}

func (g *echoGenerator) Generate(_ context.Context, prompt, question string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.prompts = append(g.prompts, prompt)
	g.questions = append(g.questions, question)
	return fmt.Sprintf("answer %d from %s", len(g.prompts), g.backend), nil
}

func (g *echoGenerator) RunningSummary(context.Context) (string, error) {
	return fmt.Sprintf("%d exchanges", len(g.prompts)), nil
}

type generatorRecorder struct {
	mu      sync.Mutex
	created []llm.Backend
	gens    []*echoGenerator
	err     error
	genErr  error
}

func (r *generatorRecorder) factory(_ context.Context, backend llm.Backend, _ float64) (AnswerGenerator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.created = append(r.created, backend)
	g := &echoGenerator{backend: backend, err: r.genErr}
	r.gens = append(r.gens, g)
	return g, nil
}

type fixedEmbedder struct{ err error }

func (f fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type fixedRetriever struct {
	docs []models.Document
	err  error
}

func (f fixedRetriever) Retrieve(_ context.Context, _ []float32, limit int) ([]models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.docs) {
		return f.docs[:limit], nil
	}
	return f.docs, nil
}

type fixedSchema string

func (f fixedSchema) GraphSchema(context.Context) (string, error) {
	if f == "" {
		return "", errors.New("schema unavailable")
	}
	return string(f), nil
}
