/*
Package fleetdeck coordinates widgets that browse and edit a shared set of
boat records without a common parent holding their state.

# Overview

Widgets talk through three pieces:
  - a message bus (package bus) that carries the selected boat to every
    widget in the session
  - reactive queries (package query) that keep a widget's data bound to a
    parameter and re-fetch when it changes
  - an edit pipeline (package edit) that saves a batch of inline edits and
    reloads the list afterwards

An App owns the bus and the record service. Widgets are created from it and
find each other only through the bus.

# Basic Usage

	svc := record.NewMemoryService(boats...)
	app, err := fleetdeck.NewApp(svc, fleetdeck.WithNotifier(notify.NewRecorder()))
	if err != nil {
	    log.Fatal(err)
	}
	defer app.Close()

	list, _ := app.NewSearchResults()
	detail, _ := app.NewDetailTabs()

	list.SearchBoats(ctx, "")
	list.Wait(ctx)

	// Clicking a row publishes the selection; the detail widget follows.
	list.SelectBoat(ctx, "boat-1")
	detail.Wait(ctx)
	fmt.Println(detail.BoatName())

	// Inline edits are saved as one batch.
	list.RecordEdit("boat-1", record.FieldPrice, 500)
	if _, err := list.HandleSave(ctx); err != nil {
	    // edits are kept; the error was shown through the notifier
	}

# Loading Events

SearchResults reports busy transitions to OnLoading listeners: notify.Loading
when a search, save or refresh begins and notify.DoneLoading when the last
one finishes. Overlapping operations produce a single pair.

# Observability

Pass WithLogger, WithMetrics and WithSpans to NewApp to log, measure and
trace fetches, saves and bus publishes. See package observability.
*/
package fleetdeck
