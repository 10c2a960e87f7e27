package db

import "fmt"

// schemaTemplate is the conversation log schema. The single %d is the
// document embedding dimension used by the HNSW index.
const schemaTemplate = `
    -- ==========================================================================
    -- SESSION (one per browser / CLI session, never mutated after creation)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS created_at ON session TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- CONVERSATION (one per fresh start; model settings it was started with)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS llm_type ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS temperature ON conversation TYPE float;
    DEFINE FIELD IF NOT EXISTS public ON conversation TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- MESSAGE (chain node; assistant-only fields are optional)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ["user", "assistant"];
    DEFINE FIELD IF NOT EXISTS posted_at ON message TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS embedding ON message TYPE option<array<float>>;
    DEFINE FIELD IF NOT EXISTS public ON message TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS num_docs ON message TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS prompt ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS running_summary ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS vector_index_search ON message TYPE option<bool>;
    DEFINE FIELD IF NOT EXISTS llm_type ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS rating ON message TYPE option<string> ASSERT $value = NONE OR $value IN ["good", "bad"];
    DEFINE FIELD IF NOT EXISTS rating_explanation ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS rated_at ON message TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS message_role ON message FIELDS role;

    -- ==========================================================================
    -- DOCUMENT (externally owned retrieval context, addressed by index)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS index ON document TYPE int;
    DEFINE FIELD IF NOT EXISTS title ON document TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS content ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS source ON document TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS section ON document TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS embedding ON document TYPE option<array<float>>;

    DEFINE INDEX IF NOT EXISTS document_index ON document FIELDS index UNIQUE;
    DEFINE INDEX IF NOT EXISTS document_embedding ON document FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;

    -- ==========================================================================
    -- RELATIONS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS has_conversation TYPE RELATION IN session OUT conversation ENFORCED SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS has_conversation_out ON has_conversation FIELDS out UNIQUE;

    DEFINE TABLE IF NOT EXISTS first TYPE RELATION IN conversation OUT message ENFORCED SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS first_in ON first FIELDS in UNIQUE;

    -- Each message has at most one successor and one predecessor: the chain is a simple path.
    DEFINE TABLE IF NOT EXISTS next TYPE RELATION IN message OUT message ENFORCED SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS next_in ON next FIELDS in UNIQUE;
    DEFINE INDEX IF NOT EXISTS next_out ON next FIELDS out UNIQUE;

    DEFINE TABLE IF NOT EXISTS has_context TYPE RELATION IN message OUT document ENFORCED SCHEMAFULL;
    DEFINE INDEX IF NOT EXISTS has_context_pair ON has_context FIELDS in, out UNIQUE;
`

// DefaultEmbeddingDimension matches all-minilm:l6-v2.
const DefaultEmbeddingDimension = 384

// SchemaSQL renders the schema for the given document embedding dimension.
func SchemaSQL(dimension int) string {
	if dimension <= 0 {
		dimension = DefaultEmbeddingDimension
	}
	return fmt.Sprintf(schemaTemplate, dimension)
}

// logTables lists every table in delete order: relations before the records they join.
var logTables = []string{"has_context", "next", "first", "has_conversation", "message", "conversation", "session", "document"}
