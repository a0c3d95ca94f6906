package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOprLog{},
	// Console
	&WhatsAppAccount{},
	&Contact{},
	&Message{},
	&MsgTemplate{},
	&Agent{},
	&AgentAssignment{},
	&CampaignLog{},
}
