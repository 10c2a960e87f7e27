package db

// Write operations run through Executor. Every statement of an operation
// executes in one transaction; a THROW aborts the whole transaction, so a
// rejected append leaves no partial mutation behind.
//
// Optional values (embedding, prompt, explanation...) are omitted from the
// parameter map when absent; an unbound parameter evaluates to NONE.

// OpStartConversation creates a conversation with its head user message and
// links it to the session. The session is created on first use only.
//
// Params: session_id, conversation_id, message_id, llm_type, temperature,
// public, content, embedding.
const OpStartConversation = `
	LET $session = type::record("session", $session_id);
	LET $conversation = type::record("conversation", $conversation_id);
	LET $message = type::record("message", $message_id);

	IF !record::exists($session) {
		CREATE $session;
	};

	CREATE $conversation SET
		llm_type = $llm_type,
		temperature = $temperature,
		public = $public;

	CREATE $message SET
		content = $content,
		role = "user",
		embedding = $embedding,
		public = $public;

	RELATE $session->has_conversation->$conversation;
	RELATE $conversation->first->$message;
`

// appendGuard rejects an append whose previous tail is missing or already
// has a successor.
const appendGuard = `
	LET $prev = type::record("message", $prev_id);
	LET $message = type::record("message", $message_id);

	IF !record::exists($prev) {
		THROW "` + throwChainBroken + `";
	};
	IF count((SELECT id FROM next WHERE in = $prev)) > 0 {
		THROW "` + throwChainForked + `";
	};
`

// OpAppendUserMessage appends a user message after the chain tail $prev_id.
//
// Params: prev_id, message_id, content, embedding, public.
const OpAppendUserMessage = appendGuard + `
	CREATE $message SET
		content = $content,
		role = "user",
		embedding = $embedding,
		public = $public;

	RELATE $prev->next->$message;
`

// OpAppendAssistantMessage appends an assistant message after the chain tail $prev_id.
//
// Params: prev_id, message_id, content, public, num_docs, prompt,
// running_summary, vector_index_search, llm_type.
const OpAppendAssistantMessage = appendGuard + `
	CREATE $message SET
		content = $content,
		role = "assistant",
		public = $public,
		num_docs = $num_docs,
		prompt = $prompt,
		running_summary = $running_summary,
		vector_index_search = $vector_index_search,
		llm_type = $llm_type;

	RELATE $prev->next->$message;
`

// OpAttachContext links a message to every document whose index is in
// $indices. Missing documents are skipped and existing links are kept as-is.
//
// Params: message_id, indices.
const OpAttachContext = `
	LET $message = type::record("message", $message_id);

	IF !record::exists($message) {
		THROW "` + throwNotFound + `";
	};

	FOR $doc IN (SELECT VALUE id FROM document WHERE index IN $indices) {
		IF count((SELECT id FROM has_context WHERE in = $message AND out = $doc)) = 0 {
			RELATE $message->has_context->$doc;
		};
	};
`

// OpRecordRating overwrites the rating of an assistant message. An absent
// $explanation clears any previous one.
//
// Params: message_id, rating, explanation.
const OpRecordRating = `
	LET $message = type::record("message", $message_id);

	IF !record::exists($message) {
		THROW "` + throwNotFound + `";
	};
	IF $message.role != "assistant" {
		THROW "` + throwNotAssistant + `";
	};

	UPDATE $message SET
		rating = $rating,
		rating_explanation = $explanation,
		rated_at = time::now();
`

// OpUpsertDocuments loads a chunk of documents bound as $params, keyed by index.
// Each element carries index, title, content and optionally source, section
// and embedding.
const OpUpsertDocuments = `
	FOR $doc IN $params {
		UPSERT type::record("document", $doc.index) SET
			index = $doc.index,
			title = $doc.title,
			content = $doc.content,
			source = $doc.source,
			section = $doc.section,
			embedding = $doc.embedding;
	};
`
