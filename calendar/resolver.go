package calendar

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/warp/deposit-engine/generic"
)

// Resolver produces the calendar an account must use. It is the only place
// that knows about hierarchical fallback.
type Resolver struct {
	Calendars generic.CalendarReader
	Directory generic.Directory
}

// ResolveInput is everything Resolve needs about the account being scheduled.
type ResolveInput struct {
	Account generic.AccountID

	// OwnerLabel names the client or group in error messages.
	OwnerLabel string

	// OwnerGroups are the groups of the account owner. For a group-owned
	// account this is the group itself.
	OwnerGroups []generic.GroupRef

	InheritFromParent bool

	// Frequency is required for standalone calendars.
	Frequency *Frequency

	StartDate civil.Date
}

// Resolve returns the account's effective calendar. It does not persist
// anything; standalone calendars come back with an empty ID.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (CollectionCalendar, error) {
	if generic.IsZeroDate(in.StartDate) || !in.StartDate.IsValid() {
		return CollectionCalendar{}, &generic.InvalidTermError{Field: "start_date", Reason: "must be a valid date"}
	}

	if in.InheritFromParent {
		return r.inherit(ctx, in)
	}
	if in.Frequency == nil || (in.Frequency.Type == "" && in.Frequency.Interval == 0) {
		return CollectionCalendar{}, generic.ErrNoValidRecurringDetails
	}
	return standalone(in)
}

func (r *Resolver) inherit(ctx context.Context, in ResolveInput) (CollectionCalendar, error) {
	switch len(in.OwnerGroups) {
	case 0:
		return CollectionCalendar{}, &generic.NotInGroupError{Owner: in.OwnerLabel}
	case 1:
	default:
		ids := make([]generic.GroupID, len(in.OwnerGroups))
		for i, g := range in.OwnerGroups {
			ids[i] = g.ID
		}
		return CollectionCalendar{}, &generic.MultipleGroupsError{Owner: in.OwnerLabel, Groups: ids}
	}

	group := in.OwnerGroups[0]
	parent := generic.Owner{EntityID: string(group.ID), EntityType: generic.EntityTypeGroup}
	provenance := ProvenanceInheritedFromGroup

	center, err := r.Directory.ParentOf(ctx, group.ID)
	if err != nil {
		return CollectionCalendar{}, fmt.Errorf("failed to look up parent of group %s: %w", group.ID, err)
	}
	if center != nil {
		parent = generic.Owner{EntityID: string(center.ID), EntityType: generic.EntityTypeCenter}
		provenance = ProvenanceInheritedFromCenter
	}

	rec, err := r.Calendars.FindCollectionCalendar(ctx, parent.EntityID, parent.EntityType)
	if err != nil {
		return CollectionCalendar{}, fmt.Errorf("failed to load calendar of %s: %w", parent, err)
	}
	if rec == nil {
		return CollectionCalendar{}, &generic.NoParentCalendarError{Parent: parent}
	}

	cal, err := FromRecord(*rec)
	if err != nil {
		return CollectionCalendar{}, err
	}
	cal.StartDate = in.StartDate
	cal.Provenance = provenance
	cal.Owner = generic.AccountOwner(in.Account)
	cal.InheritedFrom = &parent
	return cal, nil
}

func standalone(in ResolveInput) (CollectionCalendar, error) {
	f, err := in.Frequency.Normalized()
	if err != nil {
		return CollectionCalendar{}, err
	}
	return CollectionCalendar{
		StartDate:   in.StartDate,
		SeriesStart: in.StartDate,
		Frequency:   f,
		Anchor:      AnchorOf(in.StartDate),
		Provenance:  ProvenanceStandalone,
		Owner:       generic.AccountOwner(in.Account),
	}, nil
}
