package pipeline

// Prompt templates for the two AI stages. The content-schema description
// file is embedded verbatim as the system prompt; it is opaque text to this
// program.

const inferenceRules = `Inference rules, apply exactly these:
1. You MAY infer gender from pronouns used in the draft.
2. You MUST NOT infer race or ethnicity under any circumstances; if the draft does not state it, it stays unset.
3. You MAY expand well-known agency abbreviations (e.g. "LAPD") to a canonical list entry when one matches.
4. Prefer values from the canonical lists below verbatim when they match the draft; introduce a new value only when no entry fits.
5. Dates must be ISO 8601 (YYYY-MM-DD). If only a month or year is known, use the first day of that period.
6. Never invent facts that are not in the draft.`

const mediaMetadataPrompt = `Write descriptive metadata for each media reference in a draft article.

For every item below, produce one JSON object:
- images: "alt" (required, at most 15 words) and "caption" (at most 25 words)
- videos: "caption" (at most 25 words)
- documents: "title" (required, at most 8 words) and "description" (required, at most 30 words)
- links: "title" (at most 8 words), "description" (at most 30 words), and "icon" (one of "video", "news", "generic")

Each object must carry the item's exact "source_url". Base descriptions only on the surrounding draft context quoted with each item.

Media items:
%s

If you cannot produce the required fields for an item, respond with exactly {"error": true, "message": "<why>"} instead.

Respond with one fenced json block containing a JSON array, one object per item, in the order given.`

const caseMetadataPrompt = `Extract structured case metadata from the draft below.

%s

Canonical lists (use entries verbatim when they match):
%s

Required fields: "victim_name", "title", "date". Closed vocabularies: "gender" one of male|female|nonbinary|unknown; "armed_status" one of armed|unarmed|uncertain; "fleeing" one of not_fleeing|foot|car|other|unknown; "geography" one of rural|suburban|urban. "agencies" and "tags" are arrays. Include "slug" (lowercase, hyphenated) and a one-paragraph "summary".

Draft:
%s

If a required field cannot be determined from the draft, respond with exactly {"error": true, "message": "<which field and why>"} instead.

Respond with one fenced json block containing a single JSON object.`

const postMetadataPrompt = `Extract post metadata from the draft below.

%s

Canonical post tags (use entries verbatim when they match):
%s

Required field: "title". Include "slug" (lowercase, hyphenated), a one-sentence "description", and a "tags" array.

Draft:
%s

If the title cannot be determined, respond with exactly {"error": true, "message": "<why>"} instead.

Respond with one fenced json block containing a single JSON object.`

const contentPrompt = `Write the publishable %s article body for the metadata and draft below.

Metadata (already final, do not contradict it):
%s

Component snippets. Echo each one EXACTLY as written, byte for byte, at the position in the article where its media belongs. Do not alter ids, URLs, or parameters:
%s

Draft:
%s

Write clear, factual prose in the publication's neutral register. Do not add headings for metadata fields already in the frontmatter.

Respond with one fenced markdown block containing the complete article body.`
