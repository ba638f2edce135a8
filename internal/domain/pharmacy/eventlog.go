package pharmacy

import "context"

// AppendCompliance stores a compliance audit entry stamped with
// complianceId and createdAt, and returns the stored entry.
func (e *Engine) AppendCompliance(ctx context.Context, entry LogEntry) LogEntry {
	e.mu.Lock()
	now := NewTimestamp(e.now()).String()
	stored := entry.clone()
	stored["complianceId"] = "CMP-" + now
	stored["createdAt"] = now
	e.state.ComplianceEvents = append(e.state.ComplianceEvents, stored)
	out := stored.clone()
	e.mu.Unlock()

	e.emitLog(ctx, LogCompliance, out)
	return out
}

// ListCompliance returns the last ListLimit compliance entries in insertion order.
func (e *Engine) ListCompliance(ctx context.Context) []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return tail(e.state.ComplianceEvents)
}

// AppendTaxReport stores a tax report stamped with reportId and receivedAt.
func (e *Engine) AppendTaxReport(ctx context.Context, entry LogEntry) LogEntry {
	e.mu.Lock()
	now := NewTimestamp(e.now()).String()
	stored := entry.clone()
	stored["reportId"] = "TAX-" + now
	stored["receivedAt"] = now
	e.state.TaxReports = append(e.state.TaxReports, stored)
	out := stored.clone()
	e.mu.Unlock()

	e.emitLog(ctx, LogTaxReports, out)
	return out
}

// ListTaxReports returns the last ListLimit tax reports in insertion order.
func (e *Engine) ListTaxReports(ctx context.Context) []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return tail(e.state.TaxReports)
}

// AppendProcessorEvent stores a processor event stamped with receivedAt and
// returns the stored entry together with the log length.
func (e *Engine) AppendProcessorEvent(ctx context.Context, entry LogEntry) (LogEntry, int) {
	e.mu.Lock()
	stored := entry.clone()
	stored["receivedAt"] = NewTimestamp(e.now()).String()
	e.state.ProcessorEvents = append(e.state.ProcessorEvents, stored)
	count := len(e.state.ProcessorEvents)
	out := stored.clone()
	e.mu.Unlock()

	e.emitLog(ctx, LogProcessorEvents, out)
	return out, count
}

// ListProcessorEvents returns the newest ListLimit processor events, newest first.
func (e *Engine) ListProcessorEvents(ctx context.Context) []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.state.ProcessorEvents)
	out := make([]LogEntry, 0, min(n, ListLimit))
	for i := n - 1; i >= 0 && len(out) < ListLimit; i-- {
		out = append(out, e.state.ProcessorEvents[i].clone())
	}
	return out
}

// RecordTechAlert forwards an alert to the event sinks without storing it
// and returns the receipt time.
func (e *Engine) RecordTechAlert(ctx context.Context, alert LogEntry) Timestamp {
	at := NewTimestamp(e.now())
	e.emitLog(ctx, LogTechAlerts, alert.clone())
	return at
}

func (e *Engine) emitLog(ctx context.Context, log string, entry LogEntry) {
	ev := newEvent(EventLogAppended, NewTimestamp(e.now()))
	ev.Log = log
	ev.Entry = entry
	e.emit(ctx, ev)
}

func tail(entries []LogEntry) []LogEntry {
	start := 0
	if len(entries) > ListLimit {
		start = len(entries) - ListLimit
	}
	return cloneLog(entries[start:])
}
