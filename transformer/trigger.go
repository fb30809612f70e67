package transformer

import (
	"strings"

	"github.com/Sayiza/orapgsync/plsql"
)

// TriggerRecord is the Oracle trigger metadata the rewriter consumes.
type TriggerRecord struct {
	Schema     string
	Name       string
	Table      string
	Timing     string   // BEFORE, AFTER, INSTEAD OF
	Events     []string // INSERT, UPDATE, DELETE
	ForEachRow bool
	When       string // optional WHEN clause, Oracle form with :NEW/:OLD
	Body       string // anonymous block: [DECLARE ...] BEGIN ... END;
}

// transformTrigger lowers an Oracle trigger into the PostgreSQL pair:
// a trigger function and the CREATE TRIGGER binding it. The body is
// parsed by wrapping it as a procedure, run through the standard
// transform, then post-processed (colon removal, terminal RETURN).
func (e *emitter) transformTrigger(rec TriggerRecord) (functionDDL, triggerDDL string, err error) {
	stripped := plsql.StripComments(rec.Body)
	wrapped := "PROCEDURE trigger_temp_wrapper IS " + stripped

	sub, parseErrs := plsql.ParseFunctionOrProcedure(wrapped)
	if len(parseErrs) > 0 {
		return "", "", ErrParse.New(parseErrs[0].Error())
	}

	e.src = plsql.StripComments(wrapped)
	ddl, err := e.emitSubprogramNamed(sub, "trigger_temp_wrapper")
	if err != nil {
		return "", "", err
	}

	body, err := extractDollarBody(ddl)
	if err != nil {
		return "", "", err
	}
	body = removeCorrelationColons(body)
	body = injectTerminalReturn(body, rec)

	schema := strings.ToLower(rec.Schema)
	name := strings.ToLower(rec.Name)
	funcName := schema + "." + name + "_func"

	var fb strings.Builder
	fb.WriteString("CREATE OR REPLACE FUNCTION " + funcName + "() RETURNS TRIGGER AS $$\n")
	fb.WriteString(body)
	fb.WriteString("\n$$ LANGUAGE plpgsql;")

	var tb strings.Builder
	tb.WriteString("CREATE TRIGGER " + name + " " + strings.ToUpper(rec.Timing) + " ")
	events := make([]string, len(rec.Events))
	for i, ev := range rec.Events {
		events[i] = strings.ToUpper(ev)
	}
	tb.WriteString(strings.Join(events, " OR "))
	tb.WriteString(" ON " + schema + "." + strings.ToLower(rec.Table))
	if rec.ForEachRow {
		tb.WriteString(" FOR EACH ROW")
	}
	if rec.When != "" {
		tb.WriteString(" WHEN (" + removeCorrelationColons(plsql.StripComments(rec.When)) + ")")
	}
	tb.WriteString(" EXECUTE FUNCTION " + funcName + "();")

	return fb.String(), tb.String(), nil
}

// extractDollarBody returns the text between AS $$ and the closing $$ of
// a generated function DDL.
func extractDollarBody(ddl string) (string, error) {
	start := strings.Index(ddl, "AS $$")
	end := strings.LastIndex(ddl, "$$")
	if start < 0 || end <= start+5 {
		return "", ErrInternalInvariant.New("generated DDL has no $$ body")
	}
	return strings.TrimSpace(ddl[start+5 : end]), nil
}

// removeCorrelationColons drops the leading colon of :NEW/:OLD references,
// preserving the original case of the correlation word.
func removeCorrelationColons(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ':' && i+3 <= len(s)-1 {
			word := strings.ToLower(s[i+1 : i+4])
			if (word == "new" || word == "old") && !isIdentByte(byteAt(s, i+4)) {
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func byteAt(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '$' || c == '#'
}

// injectTerminalReturn inserts the trigger protocol's RETURN before the
// final END: RETURN NEW for BEFORE ROW triggers, RETURN NULL otherwise.
func injectTerminalReturn(body string, rec TriggerRecord) string {
	ret := "RETURN NULL;"
	if strings.EqualFold(rec.Timing, "BEFORE") && rec.ForEachRow {
		ret = "RETURN NEW;"
	}
	idx := strings.LastIndex(body, "END;")
	if idx < 0 {
		return body + "\n  " + ret
	}
	return body[:idx] + "  " + ret + "\n" + body[idx:]
}
