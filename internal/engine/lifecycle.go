package engine

import (
	"context"
	"fmt"
	"time"

	"peeler-go/internal/execution"
	"peeler-go/internal/market"
	"peeler-go/internal/metrics"
	"peeler-go/internal/session"
	"peeler-go/internal/signal"
)

func (e *Engine) onBook(ctx context.Context, book signal.Book) error {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		metrics.BooksDropped.WithLabelValues("empty").Inc()
		e.log.Warn().Str("instrument", book.Instrument).Msg("book without prices")
		return nil
	}
	if book.Depth() < e.params.MinLevels {
		metrics.BooksDropped.WithLabelValues("shallow").Inc()
		e.log.Warn().Str("instrument", book.Instrument).Int("levels", book.Depth()).Int("min", e.params.MinLevels).Msg("book too shallow")
		return nil
	}
	slot, ok := e.basket.Slot(book.Instrument)
	if !ok {
		metrics.BooksDropped.WithLabelValues("unknown").Inc()
		e.log.Debug().Str("instrument", book.Instrument).Msg("book for instrument outside basket")
		return nil
	}

	bid, ask := book.Bids[e.params.Depth], book.Asks[e.params.Depth]
	spread := slot.Apply(bid, ask)
	metrics.BooksTotal.WithLabelValues(book.Instrument).Inc()
	e.log.Debug().
		Str("instrument", book.Instrument).
		Stringer("bid", bid.Price).
		Stringer("ask", ask.Price).
		Stringer("spread", spread.Last).
		Stringer("direction", slot.Direction).
		Int("count", slot.ConsecutiveCount).
		Msg("quote")

	switch e.state {
	case Warmup:
		if e.basket.WarmedUp(e.params.WarmupTicks) {
			e.state = ReadyToOpen
			e.log.Info().Int("ticks", e.params.WarmupTicks).Msg("warmup complete")
		}
	case ReadyToOpen:
		return e.tryOpen(ctx, book.Instrument)
	case ReadyToClose:
		return e.tryClose(ctx, slot)
	case WaitForOpen, WaitForClose:
		e.log.Debug().Stringer("state", e.state).Msg("waiting on order")
	}
	return nil
}

func (e *Engine) tryOpen(ctx context.Context, updated string) error {
	if e.pending != nil {
		e.log.Debug().Str("order", e.pending.id).Msg("open order outstanding")
		return nil
	}
	intent := e.detector.Evaluate(updated, e.basket)
	if intent.IsZero() {
		if intent.Reason != "" {
			e.log.Debug().Str("instrument", intent.Instrument).Msg(intent.Reason)
		}
		return nil
	}
	e.log.Info().Stringer("intent", intent).Str("reason", intent.Reason).Msg("open signal")
	return e.submit(ctx, execution.Order{
		Instrument:  intent.Instrument,
		Quantity:    intent.Quantity,
		TimeInForce: session.FillOrKill,
		Purpose:     execution.PurposeOpen,
	})
}

func (e *Engine) tryClose(ctx context.Context, slot *market.Slot) error {
	pos := e.position
	if pos == nil || pos.Quantity == 0 {
		e.log.Error().Stringer("state", e.state).Msg("no open quantity to close")
		return nil
	}
	if slot.Instrument != pos.Instrument {
		return nil
	}
	if e.pending != nil {
		e.log.Debug().Str("order", e.pending.id).Msg("close order outstanding")
		return nil
	}

	// A long position exits on the bid, a short one on the ask.
	price := slot.LastAsk
	if pos.Quantity > 0 {
		price = slot.LastBid
	}
	if price >= pos.ClosingMin && price <= pos.ClosingMax {
		return nil
	}
	e.log.Info().
		Str("instrument", pos.Instrument).
		Stringer("price", price).
		Stringer("min", pos.ClosingMin).
		Stringer("max", pos.ClosingMax).
		Msg("price left closing range")
	return e.submit(ctx, execution.Order{
		Instrument:  pos.Instrument,
		Quantity:    -pos.Quantity,
		TimeInForce: session.FillOrKill,
		Purpose:     execution.PurposeClose,
	})
}

func (e *Engine) submit(ctx context.Context, order execution.Order) error {
	id, err := e.orders.Submit(ctx, order)
	if err != nil {
		e.log.Error().Err(err).Str("purpose", string(order.Purpose)).Msg("order submission failed")
		return e.onFault(ctx, session.NewFault(session.StreamFault, err))
	}
	if order.Purpose == execution.PurposeFlatten {
		e.flatten[id] = order.Instrument
		return nil
	}
	e.pending = &pendingOrder{
		id:         id,
		purpose:    order.Purpose,
		instrument: order.Instrument,
		quantity:   order.Quantity,
	}
	return nil
}

func (e *Engine) onAccepted(id string) {
	p := e.pending
	if p == nil || p.id != id {
		if instrument, ok := e.flatten[id]; ok {
			e.log.Info().Str("order", id).Str("instrument", instrument).Msg("flatten order accepted")
			return
		}
		e.log.Debug().Str("order", id).Msg("acceptance for unknown order")
		return
	}
	if p.accepted {
		return
	}
	p.accepted = true
	switch p.purpose {
	case execution.PurposeOpen:
		e.position = &Position{Instrument: p.instrument, Quantity: p.quantity}
		e.state = WaitForOpen
	case execution.PurposeClose:
		e.state = WaitForClose
	}
	e.log.Info().Str("order", id).Str("purpose", string(p.purpose)).Stringer("state", e.state).Msg("order accepted")
}

func (e *Engine) onRejected(ctx context.Context, id, reason string) error {
	p := e.pending
	if p == nil || p.id != id {
		if instrument, ok := e.flatten[id]; ok {
			delete(e.flatten, id)
			metrics.OrderRejects.WithLabelValues(string(execution.PurposeFlatten)).Inc()
			e.log.Warn().Str("order", id).Str("instrument", instrument).Str("reason", reason).Msg("flatten order rejected")
			return nil
		}
		e.log.Warn().Str("order", id).Str("reason", reason).Msg("rejection for unknown order")
		return nil
	}
	metrics.OrderRejects.WithLabelValues(string(p.purpose)).Inc()
	if p.accepted {
		// An accepted order that is later rejected leaves the venue-side position unknown.
		return e.onFault(ctx, session.NewFault(session.StuckOrder,
			fmt.Errorf("%s order %s rejected in %s: %s", p.purpose, id, e.state, reason)))
	}
	e.log.Warn().Str("order", id).Str("purpose", string(p.purpose)).Str("reason", reason).Msg("order rejected")
	e.pending = nil
	return nil
}

func (e *Engine) onExecution(ex signal.Execution) {
	metrics.FillsTotal.WithLabelValues(ex.Instrument).Inc()
	p := e.pending
	if p == nil || p.id != ex.OrderID {
		if instrument, ok := e.flatten[ex.OrderID]; ok {
			delete(e.flatten, ex.OrderID)
			e.log.Info().Str("order", ex.OrderID).Str("instrument", instrument).Stringer("filled", ex.Filled).Stringer("price", ex.Price).Msg("flatten order filled")
			return
		}
		e.log.Warn().Str("order", ex.OrderID).Stringer("state", e.state).Msg("execution for unknown order")
		return
	}
	// Venues may report the fill before the acceptance.
	e.onAccepted(p.id)

	switch p.purpose {
	case execution.PurposeOpen:
		e.openFilled(ex)
	case execution.PurposeClose:
		e.closeFilled(ex)
	}
}

func (e *Engine) openFilled(ex signal.Execution) {
	pos := e.position
	pos.Quantity = ex.Filled
	slot, _ := e.basket.Slot(pos.Instrument)
	pos.ClosingMin, pos.ClosingMax = e.detector.ClosingBand(slot, ex.Price, ex.Filled)
	e.pending = nil
	e.state = ReadyToClose
	e.log.Info().
		Str("instrument", pos.Instrument).
		Stringer("qty", pos.Quantity).
		Stringer("price", ex.Price).
		Stringer("min", pos.ClosingMin).
		Stringer("max", pos.ClosingMax).
		Msg("position opened")
	if pos.Quantity == 0 {
		e.log.Error().Stringer("state", e.state).Msg("open fill carried no quantity")
	}
}

func (e *Engine) closeFilled(ex signal.Execution) {
	pos := e.position
	pos.Quantity += ex.Filled
	if pos.Quantity != 0 {
		e.log.Warn().Str("instrument", pos.Instrument).Stringer("residual", pos.Quantity).Msg("partial close")
		return
	}
	e.log.Info().Str("instrument", pos.Instrument).Stringer("price", ex.Price).Msg("position closed")
	e.position = nil
	e.pending = nil
	e.state = ReadyToOpen
}

func (e *Engine) onPosition(ctx context.Context, report signal.PositionReport) error {
	if report.OpenQuantity == 0 {
		return nil
	}
	if e.state != Warmup && e.state != ReadyToOpen {
		e.log.Debug().Str("instrument", report.Instrument).Stringer("qty", report.OpenQuantity).Msg("position report")
		return nil
	}
	e.log.Warn().Str("instrument", report.Instrument).Stringer("qty", report.OpenQuantity).Msg("unexpected open position, flattening")
	return e.submit(ctx, execution.Order{
		Instrument:  report.Instrument,
		Quantity:    -report.OpenQuantity,
		TimeInForce: session.ImmediateOrCancel,
		Purpose:     execution.PurposeFlatten,
	})
}

func (e *Engine) onFault(ctx context.Context, fault session.Fault) error {
	if !fault.Fatal() && !e.recoveredAt.IsZero() && !fault.At.After(e.recoveredAt) {
		e.log.Debug().Str("kind", string(fault.Kind)).Msg("fault predates last recovery, ignoring")
		return nil
	}
	metrics.FaultsTotal.WithLabelValues(string(fault.Kind)).Inc()
	e.log.Error().Err(fault.Err).Str("kind", string(fault.Kind)).Stringer("state", e.state).Msg("session fault")
	if err := e.supervisor.Recover(ctx, fault, e.reset, e); err != nil {
		return err
	}
	// Faults raised while the session was down, e.g. a keepalive against the stopped session,
	// belong to the recovery that just finished.
	e.recoveredAt = time.Now()
	return nil
}
