package dto

// Template kinds accepted by the certificate endpoint.
const (
	TemplateKindPositionIndividual = "position_individual"
	TemplateKindPositionTeam       = "position_team"
	TemplateKindParticipation      = "participation"
)

// CertificateRequest holds the form fields of a certificate generation request.
type CertificateRequest struct {
	Room         int    `form:"room" validate:"required,gte=1"`
	TemplateKind string `form:"template_kind" validate:"required,oneof=position_individual position_team participation"`
	AwardDate    string `form:"award_date" validate:"omitempty,max=40"`
	SchoolYear   string `form:"school_year" validate:"omitempty,max=9"`
}
