package crowdfund

// EventKind 事件类型
type EventKind string

const (
	EventCampaignInitiated       EventKind = "CampaignInitiated"
	EventContributionTransferred EventKind = "ContributionTransferred"
	EventFundsWithdrawn          EventKind = "FundsWithdrawn"
	EventCampaignStopped         EventKind = "CampaignStopped"
)

// Event 状态迁移提交后对外发布的事件
//
// CampaignInitiated 携带 Project；ContributionTransferred / FundsWithdrawn 携带
// Source、Destination 和 Amount；CampaignStopped 只有 ProjectID。
type Event struct {
	Kind        EventKind `json:"kind"`
	ProjectID   ProjectID `json:"project_id"`
	Project     *Project  `json:"project,omitempty"`
	Source      AccountID `json:"source,omitempty"`
	Destination AccountID `json:"destination,omitempty"`
	Amount      Balance   `json:"amount,omitempty"`
}

func campaignInitiated(id ProjectID, p *Project) Event {
	return Event{Kind: EventCampaignInitiated, ProjectID: id, Project: p.Clone()}
}

func contributionTransferred(id ProjectID, source, destination AccountID, amount Balance) Event {
	return Event{Kind: EventContributionTransferred, ProjectID: id, Source: source, Destination: destination, Amount: amount}
}

func fundsWithdrawn(id ProjectID, source, destination AccountID, amount Balance) Event {
	return Event{Kind: EventFundsWithdrawn, ProjectID: id, Source: source, Destination: destination, Amount: amount}
}

func campaignStopped(id ProjectID) Event {
	return Event{Kind: EventCampaignStopped, ProjectID: id}
}
