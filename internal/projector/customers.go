package projector

import (
	"context"
	"fmt"

	"github.com/jmehdipour/subhub/internal/model"
)

func (p *Projector) customerCreated(_ context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindCustomerCreated
	cu, err := decodeObject[model.CustomerObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", cu.ID); err != nil {
		return nil, err
	}
	uid := cu.Metadata["userid"]
	if uid == "" {
		return nil, &ClientError{Kind: kind, EventID: ev.ID, Reason: fmt.Sprintf("customer %s has no user id", cu.ID)}
	}

	return Projection{
		model.DestinationMarketing: model.CustomerProfilePayload{
			MarketingHeader: header(ev),
			CustomerID:      cu.ID,
			UserID:          uid,
			Email:           cu.Email,
			Name:            cu.Name,
		},
	}, nil
}

func (p *Projector) customerUpdated(_ context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindCustomerUpdated
	cu, err := decodeObject[model.CustomerObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", cu.ID); err != nil {
		return nil, err
	}

	return Projection{
		model.DestinationMarketing: model.CustomerProfilePayload{
			MarketingHeader: header(ev),
			CustomerID:      cu.ID,
			UserID:          cu.Metadata["userid"],
			Email:           cu.Email,
			Name:            cu.Name,
			PreviousEmail:   previousString(ev, "email"),
		},
	}, nil
}

// customerDeleted needs the deleted-account record written by the identity
// side when the user closed their account.
func (p *Projector) customerDeleted(ctx context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindCustomerDeleted
	cu, err := decodeObject[model.CustomerObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", cu.ID); err != nil {
		return nil, err
	}
	uid := cu.Metadata["userid"]
	if uid == "" {
		return nil, &ClientError{Kind: kind, EventID: ev.ID, Reason: fmt.Sprintf("customer %s has no user id", cu.ID)}
	}

	acc, err := p.accounts.GetDeleted(ctx, uid, cu.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup deleted account %s: %w", uid, err)
	}
	if acc == nil {
		return nil, &ClientError{Kind: kind, EventID: ev.ID, Reason: fmt.Sprintf("no deleted account for user %s customer %s", uid, cu.ID)}
	}

	subs := acc.SubscriptionIDs
	if subs == nil {
		subs = []string{}
	}
	id := p.identity(ev, uid, false)
	id.SubscriptionIDs = subs

	return Projection{
		model.DestinationIdentityQueue: id,
		model.DestinationMarketing: model.CustomerDeletedPayload{
			MarketingHeader: header(ev),
			CustomerID:      cu.ID,
			UserID:          uid,
			OriginSystem:    acc.OriginSystem,
			SubscriptionIDs: subs,
		},
	}, nil
}

func (p *Projector) sourceExpiring(ctx context.Context, ev model.Event) (Projection, error) {
	const kind = model.KindCustomerSourceExpiring
	src, err := decodeObject[model.SourceObject](kind, ev)
	if err != nil {
		return nil, err
	}
	if err := required(kind, ev, "id", src.ID, "customer", src.Customer); err != nil {
		return nil, err
	}

	cu, err := p.billing.GetCustomer(ctx, src.Customer)
	if err != nil {
		return nil, err
	}
	if cu.Deleted {
		return Projection{}, nil
	}

	return Projection{
		model.DestinationMarketing: model.SourceExpiringPayload{
			MarketingHeader: header(ev),
			CustomerID:      src.Customer,
			UserID:          cu.UserID(),
			Email:           cu.Email,
			Brand:           src.Brand,
			Last4:           src.Last4,
			ExpMonth:        src.ExpMonth,
			ExpYear:         src.ExpYear,
		},
	}, nil
}
