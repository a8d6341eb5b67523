package domain

import (
	"context"
	"fmt"
	"net/http"

	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/weighted"
)

// catalog はパラメータ系の参照カタログ
type catalog struct {
	path   string // /parametric/ 以下のパス
	label  string // チェック名に使う表示名
	trend  string
	maxID  int
	single string // 単数形の表示名
}

var (
	statusCatalog         = catalog{"statuses", "statuses", "parametric_status_duration_ms", 5, "status"}
	roleCatalog           = catalog{"roles", "roles", "parametric_role_duration_ms", 4, "role"}
	documentTypeCatalog   = catalog{"document-types", "document types", "parametric_document_type_duration_ms", 3, "document type"}
	employmentTypeCatalog = catalog{"employment-types", "employment types", "parametric_employment_type_duration_ms", 2, "employment type"}
	modalityCatalog       = catalog{"modalities", "modalities", "parametric_modality_duration_ms", 2, "modality"}
	classroomTypeCatalog  = catalog{"classroom-types", "classroom types", "parametric_classroom_type_duration_ms", 3, "classroom type"}
)

var parametricOps = weighted.MustTable(
	weighted.Option[operation]{Label: "status", Weight: 20, Value: statusCatalog.run},
	weighted.Option[operation]{Label: "role", Weight: 15, Value: roleCatalog.run},
	weighted.Option[operation]{Label: "documentType", Weight: 20, Value: documentTypeCatalog.run},
	weighted.Option[operation]{Label: "employmentType", Weight: 15, Value: employmentTypeCatalog.run},
	weighted.Option[operation]{Label: "modality", Weight: 15, Value: modalityCatalog.run},
	weighted.Option[operation]{Label: "classroomType", Weight: 15, Value: classroomTypeCatalog.run},
)

func runParametric(ctx context.Context, s *session) {
	s.dispatch(ctx, parametricOps)
}

// run は一覧取得とID指定の取得を行う
// ID指定の応答はJSON文字列の名前だけを返す
func (c catalog) run(ctx context.Context, s *session) {
	s.get(ctx, c.trend, "/parametric/"+c.path,
		check.Status(fmt.Sprintf("get all %s (200)", c.label), http.StatusOK),
		check.IsArray(c.label+" list is array"),
		check.Has(c.label+" have id", "[0].id"),
		check.Has(c.label+" have name", "[0].name"),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, c.trend, fmt.Sprintf("/parametric/%s/%d", c.path, s.intn(1, c.maxID)),
		check.Status(fmt.Sprintf("get %s by id (200)", c.single), http.StatusOK),
		check.BodyNotEmpty(c.single+" name is string"),
	)
}
