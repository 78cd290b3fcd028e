package handler

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/config"
	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/lti"
	"github.com/duedatechanger/api/internal/middleware"
	"github.com/duedatechanger/api/pkg/response"
)

const IndexMessage = "Please contact your System Administrator."

var ltiXML = template.Must(template.New("lti.xml").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<cartridge_basiclti_link xmlns="http://www.imsglobal.org/xsd/imslticc_v1p0"
    xmlns:blti="http://www.imsglobal.org/xsd/imsbasiclti_v1p0"
    xmlns:lticm="http://www.imsglobal.org/xsd/imslticm_v1p0"
    xmlns:lticp="http://www.imsglobal.org/xsd/imslticp_v1p0"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
    xsi:schemaLocation="http://www.imsglobal.org/xsd/imslticc_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticc_v1p0.xsd
    http://www.imsglobal.org/xsd/imsbasiclti_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imsbasiclti_v1p0.xsd
    http://www.imsglobal.org/xsd/imslticm_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticm_v1p0.xsd
    http://www.imsglobal.org/xsd/imslticp_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticp_v1p0.xsd">
    <blti:title>Due Date Changer</blti:title>
    <blti:description>Change the due dates of many assignments and quizzes at once.</blti:description>
    <blti:launch_url>{{xml .LaunchURL}}</blti:launch_url>
    <blti:extensions platform="canvas.instructure.com">
        <lticm:property name="privacy_level">public</lticm:property>
        <lticm:property name="domain">{{xml .Domain}}</lticm:property>
{{- if not .CourseNavDisabled}}
        <lticm:options name="course_navigation">
            <lticm:property name="url">{{xml .LaunchURL}}</lticm:property>
            <lticm:property name="text">Due Date Changer</lticm:property>
            <lticm:property name="visibility">admins</lticm:property>
            <lticm:property name="default">enabled</lticm:property>
            <lticm:property name="enabled">true</lticm:property>
        </lticm:options>
{{- end}}
    </blti:extensions>
</cartridge_basiclti_link>
`))

func xmlEscape(s string) (string, error) {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// LTIHandler serves the launch flow and the tool configuration.
type LTIHandler struct {
	verifier       *lti.Verifier
	session        *middleware.SessionMiddleware
	staffRoles     []string
	allowedDomains []string
	courseNavOff   bool
	baseURL        string
	log            zerolog.Logger
}

func NewLTIHandler(verifier *lti.Verifier, session *middleware.SessionMiddleware, cfg *config.Config) *LTIHandler {
	return &LTIHandler{
		verifier:       verifier,
		session:        session,
		staffRoles:     cfg.LTI.StaffRoles,
		allowedDomains: cfg.Canvas.AllowedDomains,
		courseNavOff:   cfg.LTI.CourseNavDisabled,
		baseURL:        cfg.Server.BaseURL,
		log:            logger.Get().With().Str("component", "lti").Logger(),
	}
}

// Index handles GET /
func (h *LTIHandler) Index(c *fiber.Ctx) error {
	return c.SendString(IndexMessage)
}

// ConfigXML handles GET /lti.xml
func (h *LTIHandler) ConfigXML(c *fiber.Ctx) error {
	base := h.externalBase(c)
	u, err := url.Parse(base)
	if err != nil {
		return response.ServiceError(c, "Invalid base URL")
	}

	var buf bytes.Buffer
	err = ltiXML.Execute(&buf, struct {
		LaunchURL         string
		Domain            string
		CourseNavDisabled bool
	}{
		LaunchURL:         base + "/launch",
		Domain:            u.Host,
		CourseNavDisabled: h.courseNavOff,
	})
	if err != nil {
		return response.ServiceError(c, "Unable to render configuration")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

// Launch handles GET|POST /launch
func (h *LTIHandler) Launch(c *fiber.Ctx) error {
	params, err := formValues(c)
	if err != nil {
		return response.ValidationError(c, "Invalid launch request", nil)
	}

	launchURL := h.externalBase(c) + c.OriginalURL()
	if err := h.verifier.Verify(c.UserContext(), c.Method(), launchURL, params); err != nil {
		h.log.Warn().Err(err).Str("launch_url", launchURL).Msg("LTI launch rejected")
		if lti.IsRejection(err) {
			return response.Unauthorized(c, IndexMessage)
		}
		return response.ServiceError(c, IndexMessage)
	}

	// Query parameters are signed too; merge them for the launch fields.
	for k, vs := range c.Queries() {
		if params.Get(k) == "" {
			params.Set(k, vs)
		}
	}
	launch := lti.ParseLaunch(params)

	if !launch.HasRole(h.staffRoles) {
		h.log.Warn().Str("user_id", launch.UserID).Strs("roles", launch.Roles).Msg("LTI launch without staff role")
		return response.Forbidden(c, IndexMessage)
	}

	if !launch.DomainAllowed(h.allowedDomains) {
		msg := fmt.Sprintf(
			"This tool is only available from the following domain(s): %s. You attempted to access from this domain: %s",
			strings.Join(h.allowedDomains, ", "), launch.CanvasDomain,
		)
		return response.Forbidden(c, msg)
	}

	if launch.CourseID == "" {
		return response.ValidationError(c, "Launch is missing the course id", nil)
	}

	token, err := h.session.Issue(launch.UserID, launch.CourseID, launch.Roles)
	if err != nil {
		return response.ServiceError(c, "Unable to start session")
	}
	h.session.SetCookie(c, token)

	return c.Redirect(fmt.Sprintf("/course/%s/assignments", url.PathEscape(launch.CourseID)), fiber.StatusFound)
}

func (h *LTIHandler) externalBase(c *fiber.Ctx) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return c.BaseURL()
}
